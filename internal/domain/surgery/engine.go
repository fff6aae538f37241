// Package surgery implements the operation state machine: it tracks which
// operation each surgeon is performing, validates step attempts against the
// operation's sequence, runs interruptible delayed steps and fires the
// terminal effect once every required step is done.
package surgery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNilCatalog is returned by NewEngine when no catalog is supplied.
var ErrNilCatalog = errors.New("surgery engine requires a catalog")

// Engine is the only writer of surgeon and target progress records.
// All mutations happen with mu held; notifications, effects and attempt
// completion signals are delivered after mu is released.
type Engine struct {
	catalog    Catalog
	logger     ports.Logger
	notifier   Notifier
	body       Body
	metrics    Metrics
	tracer     trace.Tracer
	delayScale float64

	mu      sync.Mutex
	actors  map[EntityID]*actorProgress
	targets map[EntityID]*targetProgress
}

// NewEngine creates an engine over a validated catalog.
func NewEngine(catalog Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, ErrNilCatalog
	}
	e := &Engine{
		catalog:    catalog,
		logger:     nopLogger{},
		notifier:   nopNotifier{},
		body:       nopBody{},
		metrics:    nopMetrics{},
		tracer:     defaultTracer(),
		delayScale: 1,
		actors:     make(map[EntityID]*actorProgress),
		targets:    make(map[EntityID]*targetProgress),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// outbox collects side effects produced under the lock.
type outbox struct {
	effects []func()
	notes   []Notification
	settled []*Attempt
}

func (o *outbox) notify(n Notification) {
	o.notes = append(o.notes, n)
}

func (e *Engine) flush(out *outbox) {
	for _, fx := range out.effects {
		fx()
	}
	for _, n := range out.notes {
		e.notifier.Notify(n)
	}
	for _, a := range out.settled {
		close(a.done)
	}
}

func (e *Engine) log(ctx context.Context) ports.Logger {
	if l := ports.LoggerFromContext(ctx); l != nil {
		return l
	}
	return e.logger
}

// TryStart begins operationID on target with actor as the surgeon.
// The actor must not be performing and the target must not be receiving an
// operation; a running operation is never replaced implicitly.
func (e *Engine) TryStart(ctx context.Context, actor, target EntityID, operationID string) error {
	ctx, span := e.tracer.Start(ctx, "surgery.TryStart", trace.WithAttributes(
		attribute.String("actor", actor.String()),
		attribute.String("target", target.String()),
		attribute.String("operation", operationID),
	))
	defer span.End()

	out := &outbox{}
	e.mu.Lock()
	err := e.tryStartLocked(ctx, out, actor, target, operationID)
	e.mu.Unlock()
	e.flush(out)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Engine) tryStartLocked(ctx context.Context, out *outbox, actor, target EntityID, operationID string) error {
	log := e.log(ctx)
	if actor.IsZero() || target.IsZero() {
		return ErrEmptyEntity
	}
	op, ok := e.catalog.FindOperation(operationID)
	if !ok {
		log.Warn(ctx, "unknown operation", ports.F("actor", actor), ports.F("operation", operationID))
		return fmt.Errorf("%w: %s", ErrUnknownOperation, operationID)
	}

	ap, err := e.actorRecordLocked(actor)
	if err != nil {
		return err
	}
	if ap.performing() {
		return fmt.Errorf("%w: %s is operating on %s", ErrAlreadyInProgress, actor, ap.target)
	}
	tp := e.targetRecordLocked(target)
	if tp.operation != nil || !tp.surgeon.IsZero() {
		return fmt.Errorf("%w: %s", ErrTargetBusy, target)
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ap.target = target
	ap.selection = ""
	ap.opCtx = opCtx
	ap.cancel = cancel
	tp.surgeon = actor
	tp.operation = &op
	tp.completed = nil
	sendPhase(ap.phase, EventBegin)

	e.metrics.OperationStarted(op.ID())
	out.notify(Notification{
		Kind:       KindOperationStarted,
		Actor:      actor,
		Target:     target,
		Operation:  op.ID(),
		SelfTarget: e.isSelfTargetLocked(ap),
	})
	log.Info(ctx, "operation started",
		ports.F("actor", actor), ports.F("target", target), ports.F("operation", op.ID()))
	return nil
}

// Stop ends whatever actor is performing. It reports whether anything was
// in progress; a second call returns false and changes nothing.
func (e *Engine) Stop(ctx context.Context, actor EntityID) bool {
	return e.stop(ctx, actor, "")
}

// StopOn stops actor only if it is currently operating on target.
func (e *Engine) StopOn(ctx context.Context, actor, target EntityID) bool {
	if target.IsZero() {
		return false
	}
	return e.stop(ctx, actor, target)
}

func (e *Engine) stop(ctx context.Context, actor, target EntityID) bool {
	ctx, span := e.tracer.Start(ctx, "surgery.Stop", trace.WithAttributes(
		attribute.String("actor", actor.String()),
	))
	defer span.End()

	out := &outbox{}
	e.mu.Lock()
	stopped := false
	if ap := e.actors[actor]; ap != nil && (target.IsZero() || ap.target == target) {
		stopped = e.stopLocked(ctx, out, ap, true)
	}
	e.mu.Unlock()
	e.flush(out)

	span.SetAttributes(attribute.Bool("stopped", stopped))
	return stopped
}

// stopLocked is the single path that dissolves the actor/target relationship.
// It cancels the operation's handle, settling any pending attempt first.
func (e *Engine) stopLocked(ctx context.Context, out *outbox, ap *actorProgress, announce bool) bool {
	if !ap.performing() {
		return false
	}
	e.interruptLocked(ctx, out, ap, ReasonStopped)

	target := ap.target
	operation := ""
	if tp := e.targets[target]; tp != nil && tp.surgeon == ap.id {
		operation = tp.operationID()
		tp.reset()
	}
	if ap.cancel != nil {
		ap.cancel()
	}
	ap.target = ""
	ap.selection = ""
	ap.opCtx = nil
	ap.cancel = nil
	sendPhase(ap.phase, EventEnd)

	if operation != "" {
		e.metrics.OperationEnded(operation, false)
	}
	if announce {
		out.notify(Notification{
			Kind:      KindOperationStopped,
			Actor:     ap.id,
			Target:    target,
			Operation: operation,
		})
	}
	e.log(ctx).Info(ctx, "operation stopped",
		ports.F("actor", ap.id), ports.F("target", target), ports.F("operation", operation))
	return true
}

// Interrupt cancels actor's pending delayed step, if any. Hosts forward
// movement, damage and tool loss here.
func (e *Engine) Interrupt(ctx context.Context, actor EntityID, reason InterruptReason) bool {
	out := &outbox{}
	e.mu.Lock()
	interrupted := false
	if ap := e.actors[actor]; ap != nil {
		interrupted = e.interruptLocked(ctx, out, ap, reason)
	}
	e.mu.Unlock()
	e.flush(out)
	return interrupted
}

func (e *Engine) interruptLocked(ctx context.Context, out *outbox, ap *actorProgress, reason InterruptReason) bool {
	a := ap.pending
	if a == nil {
		return false
	}
	ap.pending = nil
	sendPhase(ap.phase, EventResolve)
	if !e.settleLocked(out, a, OutcomeInterrupted) {
		return false
	}
	out.notify(Notification{
		Kind:   KindStepInterrupted,
		Actor:  ap.id,
		Target: a.target,
		Step:   a.tool.Step,
		Tool:   a.tool.Name,
		Reason: reason,
	})
	e.log(ctx).Debug(ctx, "step interrupted",
		ports.F("actor", ap.id), ports.F("target", a.target), ports.F("tool", a.tool.Name),
		ports.F("outcome", OutcomeInterrupted), ports.F("reason", reason))
	return true
}

// Select records the sub-target (an organ) the surgeon chose.
func (e *Engine) Select(ctx context.Context, actor, choice EntityID) error {
	out := &outbox{}
	e.mu.Lock()
	err := e.selectLocked(ctx, out, actor, choice)
	e.mu.Unlock()
	e.flush(out)
	return err
}

func (e *Engine) selectLocked(ctx context.Context, out *outbox, actor, choice EntityID) error {
	ap := e.actors[actor]
	if ap == nil || !ap.performing() {
		return fmt.Errorf("%w: %s", ErrNotPerforming, actor)
	}
	if choice.IsZero() {
		return ErrEmptySelection
	}
	if !ap.selection.IsZero() {
		return fmt.Errorf("%w: %s", ErrSelectionTaken, ap.selection)
	}
	if choice == ap.target {
		return ErrSelfAsOrgan
	}
	ap.selection = choice
	out.notify(Notification{
		Kind:      KindSelectionMade,
		Actor:     actor,
		Target:    ap.target,
		Selection: choice,
	})
	e.log(ctx).Debug(ctx, "selection made", ports.F("actor", actor), ports.F("selection", choice))
	return nil
}

// RemoveActor is the removal hook for a surgeon's record.
func (e *Engine) RemoveActor(ctx context.Context, actor EntityID) {
	out := &outbox{}
	e.mu.Lock()
	if ap := e.actors[actor]; ap != nil {
		e.stopLocked(ctx, out, ap, true)
		if ap.phase != nil {
			ap.phase.Stop()
		}
		delete(e.actors, actor)
	}
	e.mu.Unlock()
	e.flush(out)
}

// RemoveTarget is the removal hook for a target's record. Any operation on
// the target is stopped first.
func (e *Engine) RemoveTarget(ctx context.Context, target EntityID) {
	out := &outbox{}
	e.mu.Lock()
	if tp := e.targets[target]; tp != nil {
		if ap := e.actors[tp.surgeon]; ap != nil {
			e.stopLocked(ctx, out, ap, true)
		}
		tp.reset()
		delete(e.targets, target)
	}
	e.mu.Unlock()
	e.flush(out)
}

// IsInProgress reports whether actor is performing an operation.
func (e *Engine) IsInProgress(actor EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ap := e.actors[actor]
	return ap != nil && ap.performing()
}

// IsPerformingOn reports whether actor is operating on target.
func (e *Engine) IsPerformingOn(actor, target EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ap := e.actors[actor]
	return ap != nil && !target.IsZero() && ap.target == target
}

// IsSelfTarget reports whether actor is operating on itself or on one of
// its own body parts.
func (e *Engine) IsSelfTarget(actor EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ap := e.actors[actor]
	return ap != nil && e.isSelfTargetLocked(ap)
}

func (e *Engine) isSelfTargetLocked(ap *actorProgress) bool {
	if !ap.performing() {
		return false
	}
	if ap.target == ap.id {
		return true
	}
	owner, ok := e.body.BodyOf(ap.target)
	return ok && owner == ap.id
}

// Actor returns a snapshot of actor's record.
func (e *Engine) Actor(actor EntityID) (ActorView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ap := e.actors[actor]
	if ap == nil {
		return ActorView{}, false
	}
	return ap.view(), true
}

// Target returns a snapshot of target's record.
func (e *Engine) Target(target EntityID) (TargetView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tp := e.targets[target]
	if tp == nil {
		return TargetView{}, false
	}
	return tp.view(), true
}

// Phase returns the surgeon's phase as tracked by its state machine.
func (e *Engine) Phase(actor EntityID) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	ap := e.actors[actor]
	if ap == nil {
		return PhaseIdle
	}
	return currentPhase(ap.phase)
}

// NextStep returns the step currently expected on target, evaluated against
// the target's live state.
func (e *Engine) NextStep(target EntityID) (procedure.StepID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tp := e.targets[target]
	if tp == nil || tp.operation == nil {
		return "", false
	}
	p := resolveProgress(*tp.operation, tp.completed, bodySubject{body: e.body, target: target})
	if !p.hasNext {
		return "", false
	}
	return p.next.ID(), true
}

func (e *Engine) actorRecordLocked(id EntityID) (*actorProgress, error) {
	if ap, ok := e.actors[id]; ok {
		return ap, nil
	}
	interp, err := buildPhaseMachine(id)
	if err != nil {
		return nil, err
	}
	ap := &actorProgress{id: id, phase: interp}
	e.actors[id] = ap
	return ap, nil
}

func (e *Engine) targetRecordLocked(id EntityID) *targetProgress {
	if tp, ok := e.targets[id]; ok {
		return tp
	}
	tp := &targetProgress{id: id}
	e.targets[id] = tp
	return tp
}

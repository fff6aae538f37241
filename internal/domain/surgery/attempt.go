package surgery

import (
	"context"
	"time"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attempt is one step attempt. Immediate attempts are already resolved when
// AttemptStep returns; delayed ones resolve when the delay expires or the
// surgeon is interrupted or stopped.
type Attempt struct {
	actor  EntityID
	target EntityID
	tool   Tool

	immediate StepOutcome
	done      chan struct{}

	// Guarded by Engine.mu; final is safe to read once done is closed.
	settled bool
	final   StepOutcome

	ctx    context.Context
	cancel context.CancelFunc
}

func newAttempt(actor, target EntityID, tool Tool) *Attempt {
	return &Attempt{
		actor:     actor,
		target:    target,
		tool:      tool,
		immediate: OutcomeRejected,
		done:      make(chan struct{}),
	}
}

// Outcome is the outcome reported at the time of the call: final for
// immediate attempts, OutcomeDelayStarted for delayed ones.
func (a *Attempt) Outcome() StepOutcome {
	return a.immediate
}

// Done is closed once the attempt has resolved.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Result returns the final outcome if resolved, otherwise OutcomeDelayStarted.
func (a *Attempt) Result() StepOutcome {
	select {
	case <-a.done:
		return a.final
	default:
		return OutcomeDelayStarted
	}
}

// Wait blocks until the attempt resolves or ctx is done.
func (a *Attempt) Wait(ctx context.Context) (StepOutcome, error) {
	select {
	case <-a.done:
		return a.final, nil
	case <-ctx.Done():
		return OutcomeDelayStarted, ctx.Err()
	}
}

// Tool returns the tool the attempt was made with.
func (a *Attempt) Tool() Tool {
	return a.tool
}

// AttemptStep tries to apply tool to target as actor's next action.
// Rejection is an ordinary outcome. A tool with a positive delay returns an
// attempt in OutcomeDelayStarted; it is cancelled by Interrupt, Stop, removal
// of either record, or cancellation of ctx.
func (e *Engine) AttemptStep(ctx context.Context, actor, target EntityID, tool Tool) *Attempt {
	ctx, span := e.tracer.Start(ctx, "surgery.AttemptStep", trace.WithAttributes(
		attribute.String("actor", actor.String()),
		attribute.String("target", target.String()),
		attribute.String("tool", tool.Name),
		attribute.String("behavior", string(tool.Behavior)),
	))
	defer span.End()

	out := &outbox{}
	e.mu.Lock()
	a := e.attemptLocked(ctx, out, actor, target, tool)
	e.mu.Unlock()
	e.flush(out)

	span.SetAttributes(attribute.String("outcome", string(a.immediate)))
	return a
}

// PerformStep attempts a step and waits for it to resolve.
func (e *Engine) PerformStep(ctx context.Context, actor, target EntityID, tool Tool) StepOutcome {
	a := e.AttemptStep(ctx, actor, target, tool)
	<-a.Done()
	return a.Result()
}

func (e *Engine) attemptLocked(ctx context.Context, out *outbox, actor, target EntityID, tool Tool) *Attempt {
	a := newAttempt(actor, target, tool)
	ap := e.actors[actor]
	tp := e.targets[target]

	if ap != nil && ap.pending != nil {
		e.rejectLocked(ctx, out, a, "step already pending")
		return a
	}
	if !e.canPerformLocked(ap, tp, tool) {
		e.rejectLocked(ctx, out, a, "not the next step")
		return a
	}

	delay := scaleDelay(tool.Delay, e.delayScale)
	if delay == 0 {
		a.immediate = e.performLocked(ctx, out, ap, tp, tool)
		e.settleLocked(out, a, a.immediate)
		return a
	}

	a.immediate = OutcomeDelayStarted
	a.ctx, a.cancel = context.WithCancel(ap.opCtx)
	ap.pending = a
	sendPhase(ap.phase, EventDelay)
	out.notify(Notification{
		Kind:   KindStepDelayBegin,
		Actor:  actor,
		Target: target,
		Step:   tool.Step,
		Tool:   tool.Name,
	})
	e.log(ctx).Debug(ctx, "step delay started",
		ports.F("actor", actor), ports.F("target", target), ports.F("tool", tool.Name),
		ports.F("delay", delay.String()))

	go e.waitDelay(ctx, a, delay)
	return a
}

func (e *Engine) waitDelay(ctx context.Context, a *Attempt, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		e.resolveDelayed(ctx, a)
	case <-a.ctx.Done():
		e.abandonDelayed(ctx, a, ReasonCancelled)
	case <-ctx.Done():
		e.abandonDelayed(ctx, a, ReasonContext)
	}
}

// resolveDelayed runs when the delay expires. Eligibility is checked again
// because the target may have changed during the wait.
func (e *Engine) resolveDelayed(ctx context.Context, a *Attempt) {
	out := &outbox{}
	e.mu.Lock()
	ap := e.actors[a.actor]
	switch {
	case a.settled:
	case ap == nil || ap.pending != a || a.ctx.Err() != nil:
		e.settleLocked(out, a, OutcomeInterrupted)
	default:
		ap.pending = nil
		sendPhase(ap.phase, EventResolve)
		tp := e.targets[a.target]
		if e.canPerformLocked(ap, tp, a.tool) {
			e.settleLocked(out, a, e.performLocked(ctx, out, ap, tp, a.tool))
		} else {
			e.rejectLocked(ctx, out, a, "no longer the next step")
		}
	}
	e.mu.Unlock()
	e.flush(out)
}

func (e *Engine) abandonDelayed(ctx context.Context, a *Attempt, reason InterruptReason) {
	out := &outbox{}
	e.mu.Lock()
	if ap := e.actors[a.actor]; ap != nil && ap.pending == a {
		e.interruptLocked(ctx, out, ap, reason)
	} else {
		e.settleLocked(out, a, OutcomeInterrupted)
	}
	e.mu.Unlock()
	e.flush(out)
}

// settleLocked fixes the final outcome of a. It returns false if a was
// already settled, so a stale timer can never commit after a cancel.
func (e *Engine) settleLocked(out *outbox, a *Attempt, outcome StepOutcome) bool {
	if a.settled {
		return false
	}
	a.settled = true
	a.final = outcome
	if a.cancel != nil {
		a.cancel()
	}
	e.metrics.StepResolved(a.tool.Behavior, outcome)
	out.settled = append(out.settled, a)
	return true
}

func (e *Engine) rejectLocked(ctx context.Context, out *outbox, a *Attempt, why string) {
	if !e.settleLocked(out, a, OutcomeRejected) {
		return
	}
	out.notify(Notification{
		Kind:   KindStepFailed,
		Actor:  a.actor,
		Target: a.target,
		Step:   a.tool.Step,
		Tool:   a.tool.Name,
	})
	e.log(ctx).Debug(ctx, "step rejected",
		ports.F("actor", a.actor), ports.F("target", a.target), ports.F("tool", a.tool.Name),
		ports.F("outcome", OutcomeRejected), ports.F("detail", why))
}

// canPerformLocked is the eligibility check of each behavior. It never
// mutates state.
func (e *Engine) canPerformLocked(ap *actorProgress, tp *targetProgress, tool Tool) bool {
	if ap == nil || tp == nil {
		return false
	}
	if !ap.performing() || ap.target != tp.id || tp.surgeon != ap.id {
		return false
	}
	switch tool.Behavior {
	case BehaviorStep:
		if tp.operation == nil {
			return false
		}
		p := resolveProgress(*tp.operation, tp.completed, bodySubject{body: e.body, target: tp.id})
		if !p.hasNext || p.next.ID() != tool.Step {
			return false
		}
		return !p.next.RequiresSelection() || !ap.selection.IsZero()
	case BehaviorCauterize:
		return true
	case BehaviorSelect:
		return ap.selection.IsZero()
	default:
		return false
	}
}

// performLocked applies the behavior. Callers have checked eligibility.
func (e *Engine) performLocked(ctx context.Context, out *outbox, ap *actorProgress, tp *targetProgress, tool Tool) StepOutcome {
	log := e.log(ctx)
	switch tool.Behavior {
	case BehaviorStep:
		operation := tp.operationID()
		tp.completed = append(tp.completed, tool.Step)
		out.notify(Notification{
			Kind:      KindStepSucceeded,
			Actor:     ap.id,
			Target:    tp.id,
			Operation: operation,
			Step:      tool.Step,
			Tool:      tool.Name,
		})
		log.Debug(ctx, "step committed",
			ports.F("actor", ap.id), ports.F("target", tp.id), ports.F("operation", operation),
			ports.F("step", tool.Step), ports.F("outcome", OutcomeCommitted))
		e.completeIfDoneLocked(ctx, out, ap, tp)
		return OutcomeCommitted

	case BehaviorCauterize:
		out.notify(Notification{
			Kind:      KindStepSucceeded,
			Actor:     ap.id,
			Target:    tp.id,
			Operation: tp.operationID(),
			Step:      tool.Step,
			Tool:      tool.Name,
		})
		e.stopLocked(ctx, out, ap, true)
		return OutcomeCommitted

	case BehaviorSelect:
		out.notify(Notification{
			Kind:      KindSelectionRequested,
			Actor:     ap.id,
			Target:    tp.id,
			Operation: tp.operationID(),
			Tool:      tool.Name,
		})
		return OutcomeCommitted
	}
	return OutcomeRejected
}

// completeIfDoneLocked tears the operation down once no necessary step
// remains. The effect is queued to run exactly once after the lock is
// released; the relationship itself is removed by stopLocked.
func (e *Engine) completeIfDoneLocked(ctx context.Context, out *outbox, ap *actorProgress, tp *targetProgress) {
	if tp.operation == nil {
		return
	}
	op := *tp.operation
	p := resolveProgress(op, tp.completed, bodySubject{body: e.body, target: tp.id})
	if !p.complete(len(tp.completed)) {
		return
	}

	actor, target, selection := ap.id, tp.id, ap.selection
	tp.operation = nil
	tp.completed = nil
	if effect := op.Effect(); !effect.IsNone() {
		out.effects = append(out.effects, func() {
			if !e.applyEffect(effect, actor, target, selection) {
				e.log(ctx).Warn(ctx, "effect had nothing to apply",
					ports.F("target", target), ports.F("effect", effect.String()))
			}
		})
	}
	e.metrics.OperationEnded(op.ID(), true)
	out.notify(Notification{
		Kind:       KindOperationCompleted,
		Actor:      actor,
		Target:     target,
		Operation:  op.ID(),
		SelfTarget: e.isSelfTargetLocked(ap),
	})
	e.log(ctx).Info(ctx, "operation completed",
		ports.F("actor", actor), ports.F("target", target), ports.F("operation", op.ID()),
		ports.F("effect", op.Effect().String()))
	e.stopLocked(ctx, out, ap, false)
}

// applyEffect reports whether the world changed.
func (e *Engine) applyEffect(effect procedure.Effect, actor, target, selection EntityID) bool {
	switch effect {
	case procedure.EffectAmputation:
		return e.body.Detach(target)
	case procedure.EffectOrganExtraction:
		return !selection.IsZero() && e.body.HasOrgan(target, selection) && e.body.RemoveOrgan(target, selection)
	}
	return true
}

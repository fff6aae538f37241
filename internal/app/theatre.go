// Package app wires the surgery engine to a world and the tool bindings, and
// maps host interactions (drapes, tool clicks, organ choices, interruptions,
// despawns) onto engine calls.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/theatre/internal/adapters/logging"
	"github.com/felixgeelhaar/theatre/internal/adapters/world"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
	"github.com/felixgeelhaar/theatre/internal/ports"
)

// Host errors.
var (
	ErrOrganNotInTarget = errors.New("organ is not inside the part being operated on")
	ErrNilDependency    = errors.New("theatre requires a catalog, tools and a world")
)

// ToolSet resolves tool names to bindings.
type ToolSet interface {
	Find(name string) (surgery.Tool, error)
}

// DrapeResult describes what a drape did.
type DrapeResult string

const (
	// DrapeStarted means a new operation began.
	DrapeStarted DrapeResult = "started"
	// DrapeCancelled means a second drape on an untouched target called it off.
	DrapeCancelled DrapeResult = "cancelled"
)

// Theatre is the host application around one engine.
type Theatre struct {
	engine  *surgery.Engine
	catalog *procedure.Catalog
	tools   ToolSet
	world   *world.World
	logger  ports.Logger
}

// New creates a Theatre. The world is always installed as the engine's body
// port; opts are passed through to the engine.
func New(catalog *procedure.Catalog, tools ToolSet, w *world.World, logger ports.Logger, opts ...surgery.Option) (*Theatre, error) {
	if catalog == nil || tools == nil || w == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opts = append([]surgery.Option{surgery.WithLogger(logger)}, opts...)
	opts = append(opts, surgery.WithBody(w))

	engine, err := surgery.NewEngine(catalog, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return &Theatre{
		engine:  engine,
		catalog: catalog,
		tools:   tools,
		world:   w,
		logger:  logger,
	}, nil
}

// Engine returns the underlying engine.
func (t *Theatre) Engine() *surgery.Engine {
	return t.engine
}

// World returns the world the theatre operates in.
func (t *Theatre) World() *world.World {
	return t.world
}

// Drape starts operationID on target. Draping a target the surgeon is
// already working on, before any step was completed, calls the operation off.
func (t *Theatre) Drape(ctx context.Context, surgeon, target surgery.EntityID, operationID string) (DrapeResult, error) {
	if err := t.mustExist(surgeon, target); err != nil {
		return "", err
	}

	if t.engine.IsPerformingOn(surgeon, target) {
		if view, ok := t.engine.Target(target); ok && len(view.Completed) == 0 {
			t.engine.StopOn(ctx, surgeon, target)
			t.logger.Info(ctx, "drapes removed",
				ports.F("actor", surgeon), ports.F("target", target))
			return DrapeCancelled, nil
		}
	}

	op, ok := t.catalog.FindOperation(operationID)
	if !ok {
		return "", fmt.Errorf("%w: %s", surgery.ErrUnknownOperation, operationID)
	}
	if op.Hidden() {
		return "", fmt.Errorf("%w: %s", surgery.ErrHiddenOperation, operationID)
	}
	if err := t.engine.TryStart(ctx, surgeon, target, operationID); err != nil {
		return "", err
	}
	return DrapeStarted, nil
}

// UseTool applies the named tool to what the surgeon clicked. A click on a
// whole body lands on the part of that body currently being operated on.
func (t *Theatre) UseTool(ctx context.Context, surgeon, clicked surgery.EntityID, toolName string) (*surgery.Attempt, error) {
	tool, err := t.tools.Find(toolName)
	if err != nil {
		t.logger.Warn(ctx, "unknown tool", ports.F("actor", surgeon), ports.F("tool", toolName))
		return nil, err
	}
	return t.engine.AttemptStep(ctx, surgeon, t.retarget(surgeon, clicked), tool), nil
}

func (t *Theatre) retarget(surgeon, clicked surgery.EntityID) surgery.EntityID {
	e, ok := t.world.Entity(clicked)
	if !ok || e.Kind != world.KindBody {
		return clicked
	}
	view, ok := t.engine.Actor(surgeon)
	if !ok || !view.Performing() {
		return clicked
	}
	if body, ok := t.world.BodyOf(view.Target); ok && body == clicked {
		return view.Target
	}
	return clicked
}

// ChooseOrgan answers a selection request with an organ inside the part
// being operated on.
func (t *Theatre) ChooseOrgan(ctx context.Context, surgeon, organ surgery.EntityID) error {
	view, ok := t.engine.Actor(surgeon)
	if !ok || !view.Performing() {
		return fmt.Errorf("%w: %s", surgery.ErrNotPerforming, surgeon)
	}
	if !t.world.HasOrgan(view.Target, organ) {
		return fmt.Errorf("%w: %s", ErrOrganNotInTarget, t.world.Name(organ))
	}
	return t.engine.Select(ctx, surgeon, organ)
}

// Interrupt forwards a host event (movement, damage, a dropped tool) that
// cancels the surgeon's pending step.
func (t *Theatre) Interrupt(ctx context.Context, surgeon surgery.EntityID, reason surgery.InterruptReason) bool {
	return t.engine.Interrupt(ctx, surgeon, reason)
}

// Despawn removes an entity and everything inside it, running the engine's
// removal hooks for each removed identity.
func (t *Theatre) Despawn(ctx context.Context, id surgery.EntityID) []surgery.EntityID {
	removed := t.world.Despawn(id)
	for _, gone := range removed {
		t.engine.RemoveTarget(ctx, gone)
		t.engine.RemoveActor(ctx, gone)
	}
	if len(removed) > 0 {
		t.logger.Debug(ctx, "entities despawned", ports.F("root", id), ports.F("count", len(removed)))
	}
	return removed
}

// PossibleOperations lists the visible operations that make sense on target:
// amputation needs an attached part, organ extraction needs an organ.
func (t *Theatre) PossibleOperations(target surgery.EntityID) []procedure.Operation {
	e, ok := t.world.Entity(target)
	if !ok {
		return nil
	}
	var out []procedure.Operation
	for _, op := range t.catalog.VisibleOperations() {
		switch op.Effect() {
		case procedure.EffectAmputation:
			if _, attached := t.world.BodyOf(target); !attached {
				continue
			}
		case procedure.EffectOrganExtraction:
			if !t.hasOrgans(e.ID) {
				continue
			}
		}
		out = append(out, op)
	}
	return out
}

func (t *Theatre) hasOrgans(part surgery.EntityID) bool {
	for _, child := range t.world.Children(part) {
		if child.Kind == world.KindOrgan {
			return true
		}
	}
	return false
}

func (t *Theatre) mustExist(ids ...surgery.EntityID) error {
	for _, id := range ids {
		if _, ok := t.world.Entity(id); !ok {
			return fmt.Errorf("%w: %s", world.ErrUnknownEntity, id)
		}
	}
	return nil
}

package surgery

import (
	"context"

	"github.com/felixgeelhaar/statekit"
	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
)

// EntityID is the stable identity handle of a surgeon, a target or an organ.
// The host owns identities; the engine only indexes records by them.
type EntityID string

// String returns the raw identifier.
func (id EntityID) String() string {
	return string(id)
}

// IsZero reports whether the handle is unset.
func (id EntityID) IsZero() bool {
	return id == ""
}

// actorProgress is the per-surgeon "what am I doing" record.
// Only the Engine touches it, always with Engine.mu held.
type actorProgress struct {
	id        EntityID
	target    EntityID
	selection EntityID

	// opCtx/cancel form the cancellation handle owned while an operation runs.
	opCtx  context.Context
	cancel context.CancelFunc

	pending *Attempt
	phase   *statekit.Interpreter[phaseContext]
}

func (a *actorProgress) performing() bool {
	return !a.target.IsZero()
}

// targetProgress is the per-target "what is being done to me" record.
type targetProgress struct {
	id        EntityID
	surgeon   EntityID
	operation *procedure.Operation
	completed []procedure.StepID
}

func (t *targetProgress) operationID() string {
	if t.operation == nil {
		return ""
	}
	return t.operation.ID()
}

func (t *targetProgress) reset() {
	t.surgeon = ""
	t.operation = nil
	t.completed = nil
}

// ActorView is a read-only snapshot of a surgeon's progress record.
type ActorView struct {
	ID              EntityID
	Target          EntityID
	Selection       EntityID
	HasCancellation bool
	Pending         bool
	Phase           Phase
}

// Performing reports whether the surgeon has an operation underway.
func (v ActorView) Performing() bool {
	return !v.Target.IsZero()
}

// TargetView is a read-only snapshot of a target's progress record.
type TargetView struct {
	ID        EntityID
	Surgeon   EntityID
	Operation string
	Completed []procedure.StepID
}

// Busy reports whether an operation is in progress on the target.
func (v TargetView) Busy() bool {
	return v.Operation != ""
}

func (a *actorProgress) view() ActorView {
	return ActorView{
		ID:              a.id,
		Target:          a.target,
		Selection:       a.selection,
		HasCancellation: a.cancel != nil,
		Pending:         a.pending != nil,
		Phase:           currentPhase(a.phase),
	}
}

func (t *targetProgress) view() TargetView {
	var completed []procedure.StepID
	if len(t.completed) > 0 {
		completed = make([]procedure.StepID, len(t.completed))
		copy(completed, t.completed)
	}
	return TargetView{
		ID:        t.id,
		Surgeon:   t.surgeon,
		Operation: t.operationID(),
		Completed: completed,
	}
}

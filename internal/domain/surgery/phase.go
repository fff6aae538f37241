package surgery

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Phase is the coarse lifecycle position of a surgeon.
type Phase string

// Machine state identifiers.
const (
	stateIdle      = "idle"
	stateOperating = "operating"
	stateDelaying  = "delaying"
)

// Phases a surgeon moves through.
const (
	// PhaseIdle means no operation is underway.
	PhaseIdle Phase = stateIdle
	// PhaseOperating means an operation is underway and no step is pending.
	PhaseOperating Phase = stateOperating
	// PhaseDelaying means a delayed step attempt is waiting to resolve.
	PhaseDelaying Phase = stateDelaying
)

// Event types for the surgeon phase machine.
const (
	EventBegin   = "BEGIN"
	EventDelay   = "DELAY"
	EventResolve = "RESOLVE"
	EventEnd     = "END"
)

// phaseContext is the statekit context carried by each surgeon machine.
type phaseContext struct {
	OperatingEntries int
	Delays           int
}

// buildPhaseMachine constructs the surgeon phase machine.
// The engine's records stay authoritative; the machine mirrors them for
// observers and rejects nonsensical transitions by ignoring them.
func buildPhaseMachine(actor EntityID) (*statekit.Interpreter[phaseContext], error) {
	machine, err := statekit.NewMachine[phaseContext]("surgeon-phase").
		WithInitial(stateIdle).
		WithContext(phaseContext{}).
		WithAction("countOperating", func(c *phaseContext, _ statekit.Event) {
			c.OperatingEntries++
		}).
		WithAction("countDelay", func(c *phaseContext, _ statekit.Event) {
			c.Delays++
		}).
		State(stateIdle).
		On(EventBegin).Target(stateOperating).Done().
		State(stateOperating).
		OnEntry("countOperating").
		On(EventDelay).Target(stateDelaying).
		On(EventEnd).Target(stateIdle).Done().
		State(stateDelaying).
		OnEntry("countDelay").
		On(EventResolve).Target(stateOperating).
		On(EventEnd).Target(stateIdle).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build phase machine for %s: %w", actor, err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return interp, nil
}

func currentPhase(interp *statekit.Interpreter[phaseContext]) Phase {
	if interp == nil {
		return PhaseIdle
	}
	return Phase(interp.State().Value)
}

func sendPhase(interp *statekit.Interpreter[phaseContext], event string) {
	if interp == nil {
		return
	}
	interp.Send(statekit.Event{Type: statekit.EventType(event)})
}

package surgery

import "errors"

// Start errors. Rejected step attempts are outcomes, not errors.
var (
	ErrAlreadyInProgress = errors.New("surgeon already has an operation in progress")
	ErrTargetBusy        = errors.New("target is already receiving an operation")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrHiddenOperation   = errors.New("operation is not available")
	ErrSelfAsOrgan       = errors.New("surgeon cannot select the target itself")
	ErrEmptyEntity       = errors.New("actor and target must be set")
)

// Selection errors.
var (
	ErrNotPerforming  = errors.New("surgeon is not performing an operation")
	ErrSelectionTaken = errors.New("surgeon has already made a selection")
	ErrEmptySelection = errors.New("selection cannot be empty")
)

// StepOutcome is the result of a step attempt.
type StepOutcome string

const (
	// OutcomeRejected means the attempt was not the legal next action or failed.
	OutcomeRejected StepOutcome = "rejected"
	// OutcomeDelayStarted means the attempt is waiting out its delay.
	OutcomeDelayStarted StepOutcome = "delay_started"
	// OutcomeCommitted means the step's effect was applied.
	OutcomeCommitted StepOutcome = "committed"
	// OutcomeInterrupted means the delay was cancelled; nothing was applied.
	OutcomeInterrupted StepOutcome = "interrupted"
)

// Final reports whether the outcome is a resolution rather than a wait.
func (o StepOutcome) Final() bool {
	return o != OutcomeDelayStarted
}

// InterruptReason names the external event that cancelled a pending step.
type InterruptReason string

// Interruption reasons forwarded by the host.
const (
	ReasonMovement  InterruptReason = "movement"
	ReasonDamage    InterruptReason = "damage"
	ReasonToolLost  InterruptReason = "tool_lost"
	ReasonCancelled InterruptReason = "cancelled"
	ReasonStopped   InterruptReason = "stopped"
	ReasonContext   InterruptReason = "context"
)

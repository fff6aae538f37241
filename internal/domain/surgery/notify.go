package surgery

import (
	"fmt"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
)

// NotificationKind classifies engine notifications.
type NotificationKind string

// Notification kinds.
const (
	KindOperationStarted   NotificationKind = "operation_started"
	KindOperationStopped   NotificationKind = "operation_stopped"
	KindOperationCompleted NotificationKind = "operation_completed"
	KindStepDelayBegin     NotificationKind = "step_delay_begin"
	KindStepSucceeded      NotificationKind = "step_succeeded"
	KindStepFailed         NotificationKind = "step_failed"
	KindStepInterrupted    NotificationKind = "step_interrupted"
	KindSelectionRequested NotificationKind = "selection_requested"
	KindSelectionMade      NotificationKind = "selection_made"
)

// Notification is a fire-and-forget presentation event.
type Notification struct {
	Kind       NotificationKind
	Actor      EntityID
	Target     EntityID
	Operation  string
	Step       procedure.StepID
	Tool       string
	Selection  EntityID
	Reason     InterruptReason
	SelfTarget bool
}

// String renders a compact single-line form, mostly for logs and tests.
func (n Notification) String() string {
	s := fmt.Sprintf("%s actor=%s target=%s", n.Kind, n.Actor, n.Target)
	if n.Operation != "" {
		s += " operation=" + n.Operation
	}
	if !n.Step.IsZero() {
		s += " step=" + n.Step.String()
	}
	if n.Reason != "" {
		s += " reason=" + string(n.Reason)
	}
	return s
}

// Notifier receives engine notifications. Calls happen outside the engine's
// lock, so a notifier may call back into the engine.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

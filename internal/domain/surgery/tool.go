package surgery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
)

// Tool errors.
var (
	ErrUnknownBehavior = errors.New("unknown step behavior")
	ErrToolWithoutStep = errors.New("tool has no step")
	ErrNegativeDelay   = errors.New("tool delay cannot be negative")
)

// BehaviorKind is the closed set of step behavior strategies a tool can carry.
type BehaviorKind string

const (
	// BehaviorStep appends its step to the target's completed steps when that
	// step is the next required one.
	BehaviorStep BehaviorKind = "step"
	// BehaviorCauterize ends the current operation early.
	BehaviorCauterize BehaviorKind = "cauterize"
	// BehaviorSelect lets the surgeon choose a sub-target such as an organ.
	BehaviorSelect BehaviorKind = "select"
)

// ParseBehaviorKind validates a behavior name from configuration.
func ParseBehaviorKind(s string) (BehaviorKind, error) {
	k := BehaviorKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case BehaviorStep, BehaviorCauterize, BehaviorSelect:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBehavior, s)
	}
}

// Tool binds a step behavior strategy to a step identifier and a delay.
// Bindings are configuration owned by the host, not catalog data.
type Tool struct {
	Name     string
	Behavior BehaviorKind
	Step     procedure.StepID
	Delay    time.Duration
}

// StepTool returns a tag-appending tool for step.
func StepTool(step procedure.StepID, delay time.Duration) Tool {
	return Tool{Name: step.String(), Behavior: BehaviorStep, Step: step, Delay: delay}
}

// CauteryTool returns a tool that ends the current operation.
func CauteryTool(delay time.Duration) Tool {
	return Tool{Name: "cautery", Behavior: BehaviorCauterize, Step: "cauterization", Delay: delay}
}

// SelectionTool returns a tool that asks the surgeon to choose an organ.
func SelectionTool() Tool {
	return Tool{Name: "organ-selection", Behavior: BehaviorSelect, Step: "organ-selection"}
}

// Validate checks the binding against the step catalog.
func (t Tool) Validate(steps procedure.StepLookup) error {
	if _, err := ParseBehaviorKind(string(t.Behavior)); err != nil {
		return fmt.Errorf("tool %s: %w", t.Name, err)
	}
	if t.Delay < 0 {
		return fmt.Errorf("tool %s: %w", t.Name, ErrNegativeDelay)
	}
	if t.Behavior == BehaviorStep && t.Step.IsZero() {
		return fmt.Errorf("tool %s: %w", t.Name, ErrToolWithoutStep)
	}
	if !t.Step.IsZero() {
		if _, ok := steps.FindStep(t.Step); !ok {
			return fmt.Errorf("tool %s: %w", t.Name, procedure.UnknownStepError(t.Step, ""))
		}
	}
	return nil
}

// String returns a short description.
func (t Tool) String() string {
	if t.Delay > 0 {
		return fmt.Sprintf("%s (%s %s, %s)", t.Name, t.Behavior, t.Step, t.Delay)
	}
	return fmt.Sprintf("%s (%s %s)", t.Name, t.Behavior, t.Step)
}

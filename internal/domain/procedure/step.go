// Package procedure holds the read-only surgical catalog: step definitions,
// operation definitions and the rules that tie them together at load time.
package procedure

import (
	"errors"
	"strings"
)

// Step errors.
var (
	ErrEmptyStepID = errors.New("step id cannot be empty")
)

// StepID identifies a step definition in the catalog (e.g. "incision").
type StepID string

// String returns the raw identifier.
func (id StepID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id StepID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// Step is an immutable catalog entry describing one surgical action.
type Step struct {
	id                StepID
	necessity         Necessity
	requiresSelection bool
}

// NewStep creates a step definition with no necessity predicate.
func NewStep(id StepID) (Step, error) {
	if id.IsZero() {
		return Step{}, ErrEmptyStepID
	}
	return Step{id: id}, nil
}

// ID returns the step identifier.
func (s Step) ID() StepID {
	return s.id
}

// Necessity returns the step's necessity predicate.
func (s Step) Necessity() Necessity {
	return s.necessity
}

// RequiresSelection reports whether the step can only be performed after the
// surgeon has chosen a sub-target such as an organ.
func (s Step) RequiresSelection() bool {
	return s.requiresSelection
}

// WithNecessity returns a copy of the step gated by the given predicate.
func (s Step) WithNecessity(n Necessity) Step {
	s.necessity = n
	return s
}

// WithRequiresSelection returns a copy of the step with the selection gate set.
func (s Step) WithRequiresSelection(required bool) Step {
	s.requiresSelection = required
	return s
}

// Necessary evaluates the necessity predicate against the subject.
func (s Step) Necessary(subject Subject) bool {
	return s.necessity.Necessary(subject)
}

// IsZero returns true if this is a zero-value Step.
func (s Step) IsZero() bool {
	return s.id == ""
}

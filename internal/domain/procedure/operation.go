package procedure

import "strings"

// StepLookup resolves step definitions by identifier.
type StepLookup interface {
	FindStep(id StepID) (Step, bool)
}

// Operation is an immutable, ordered sequence of steps plus the effect that
// fires once every required step has been completed.
type Operation struct {
	id          string
	name        string
	description string
	hidden      bool
	steps       []Step
	effect      Effect
}

// NewOperation creates an operation definition from an ordered step list.
func NewOperation(id, name string, steps []Step) (Operation, error) {
	if strings.TrimSpace(id) == "" {
		return Operation{}, &DefinitionError{Kind: ErrInvalidOperation, Detail: "id cannot be empty"}
	}
	if len(steps) == 0 {
		return Operation{}, &DefinitionError{Kind: ErrEmptyOperationSteps, Operation: id}
	}
	for _, s := range steps {
		if s.IsZero() {
			return Operation{}, &DefinitionError{Kind: ErrInvalidOperation, Operation: id, Detail: "empty step reference"}
		}
	}
	if name == "" {
		name = id
	}
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return Operation{id: id, name: name, steps: cp}, nil
}

// ID returns the operation identifier.
func (o Operation) ID() string {
	return o.id
}

// Name returns the display name.
func (o Operation) Name() string {
	return o.name
}

// Description returns the optional long description.
func (o Operation) Description() string {
	return o.description
}

// Hidden reports whether the operation is withheld from surgeons' menus.
func (o Operation) Hidden() bool {
	return o.hidden
}

// Effect returns the terminal effect.
func (o Operation) Effect() Effect {
	return o.effect
}

// Steps returns a copy of the ordered step list.
func (o Operation) Steps() []Step {
	cp := make([]Step, len(o.steps))
	copy(cp, o.steps)
	return cp
}

// StepCount returns the number of listed steps, necessary or not.
func (o Operation) StepCount() int {
	return len(o.steps)
}

// StepAt returns the step at position i.
func (o Operation) StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(o.steps) {
		return Step{}, false
	}
	return o.steps[i], true
}

// NecessaryCount returns how many listed steps currently apply to subject.
func (o Operation) NecessaryCount(subject Subject) int {
	n := 0
	for _, s := range o.steps {
		if s.Necessary(subject) {
			n++
		}
	}
	return n
}

// WithDescription returns a copy with the description set.
func (o Operation) WithDescription(description string) Operation {
	o.description = description
	return o
}

// WithHidden returns a copy with the hidden flag set.
func (o Operation) WithHidden(hidden bool) Operation {
	o.hidden = hidden
	return o
}

// WithEffect returns a copy with the terminal effect set.
func (o Operation) WithEffect(effect Effect) Operation {
	o.effect = effect
	return o
}

// Validate checks that every referenced step exists in the catalog.
func (o Operation) Validate(steps StepLookup) error {
	for _, s := range o.steps {
		if _, ok := steps.FindStep(s.ID()); !ok {
			return UnknownStepError(s.ID(), o.id)
		}
	}
	return nil
}

// IsZero returns true if this is a zero-value Operation.
func (o Operation) IsZero() bool {
	return o.id == ""
}

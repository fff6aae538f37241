package procedure

import (
	"errors"
	"fmt"
)

// Definition error sentinels, matched with errors.Is against a DefinitionError.
var (
	ErrUnknownStep         = errors.New("unknown step")
	ErrDuplicateStep       = errors.New("step already exists")
	ErrDuplicateOperation  = errors.New("operation already exists")
	ErrInvalidDefinition   = errors.New("invalid definition")
	ErrUnsupportedVersion  = errors.New("unsupported catalog version")
	ErrInvalidOperation    = errors.New("operation is invalid")
	ErrEmptyOperationSteps = errors.New("operation has no steps")
)

// DefinitionError is a load-time catalog failure. It is fatal: a catalog that
// produces one must not be used.
type DefinitionError struct {
	Kind      error
	Operation string
	Step      StepID
	Detail    string
}

// Error returns the formatted error message.
func (e *DefinitionError) Error() string {
	switch {
	case e.Operation != "" && e.Step != "":
		return fmt.Sprintf("%v: step %q in operation %q", e.Kind, e.Step, e.Operation)
	case e.Operation != "":
		msg := fmt.Sprintf("%v: operation %q", e.Kind, e.Operation)
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		return msg
	case e.Step != "":
		return fmt.Sprintf("%v: step %q", e.Kind, e.Step)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the sentinel kind for errors.Is.
func (e *DefinitionError) Unwrap() error {
	return e.Kind
}

// UnknownStepError reports an operation referencing a step missing from the catalog.
func UnknownStepError(step StepID, operation string) *DefinitionError {
	return &DefinitionError{Kind: ErrUnknownStep, Operation: operation, Step: step}
}

package procedure

import (
	"fmt"
	"sort"
)

// Catalog is the aggregate root for step and operation definitions.
// It is built once at startup and read-only afterwards.
type Catalog struct {
	steps      map[StepID]Step
	operations map[string]Operation
}

// NewCatalog creates a new empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		steps:      make(map[StepID]Step),
		operations: make(map[string]Operation),
	}
}

// AddStep adds a step definition to the catalog.
func (c *Catalog) AddStep(step Step) error {
	if step.IsZero() {
		return &DefinitionError{Kind: ErrInvalidDefinition, Detail: "empty step"}
	}
	if _, exists := c.steps[step.ID()]; exists {
		return &DefinitionError{Kind: ErrDuplicateStep, Step: step.ID()}
	}
	c.steps[step.ID()] = step
	return nil
}

// AddOperation adds an operation definition to the catalog. Step references
// are checked by Validate, not here, so operations may be added before steps.
func (c *Catalog) AddOperation(op Operation) error {
	if op.IsZero() {
		return &DefinitionError{Kind: ErrInvalidOperation, Detail: "empty operation"}
	}
	if _, exists := c.operations[op.ID()]; exists {
		return &DefinitionError{Kind: ErrDuplicateOperation, Operation: op.ID()}
	}
	c.operations[op.ID()] = op
	return nil
}

// FindStep retrieves a step by its ID.
func (c *Catalog) FindStep(id StepID) (Step, bool) {
	s, ok := c.steps[id]
	return s, ok
}

// FindOperation retrieves an operation by its ID.
func (c *Catalog) FindOperation(id string) (Operation, bool) {
	op, ok := c.operations[id]
	return op, ok
}

// Steps returns all steps sorted by ID.
func (c *Catalog) Steps() []Step {
	result := make([]Step, 0, len(c.steps))
	for _, s := range c.steps {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// Operations returns all operations sorted by ID.
func (c *Catalog) Operations() []Operation {
	result := make([]Operation, 0, len(c.operations))
	for _, op := range c.operations {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// VisibleOperations returns the operations a surgeon may pick from a menu.
func (c *Catalog) VisibleOperations() []Operation {
	all := c.Operations()
	result := all[:0]
	for _, op := range all {
		if !op.Hidden() {
			result = append(result, op)
		}
	}
	return result
}

// Validate checks every operation against the step catalog. Operations are
// visited in ID order so the reported failure is deterministic.
func (c *Catalog) Validate() error {
	for _, op := range c.Operations() {
		if err := op.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// String returns a summary string.
func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog (%d steps, %d operations)", len(c.steps), len(c.operations))
}

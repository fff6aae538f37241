package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorization.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigParse      = "CONFIG_PARSE"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeCatalogInvalid   = "CATALOG_INVALID"
	ErrCodeToolsInvalid     = "TOOLS_INVALID"
	ErrCodeScenarioInvalid  = "SCENARIO_INVALID"
	ErrCodeScenarioFailed   = "SCENARIO_FAILED"
	ErrCodeOperationUnknown = "OPERATION_UNKNOWN"
)

// UserError is an error meant for people running the CLI: a code, a short
// message, where it happened and what to try next.
type UserError struct {
	Code       string
	Message    string
	Context    string
	Suggestion string
	Underlying error
}

// Error returns the message and, if set, its location.
func (e *UserError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Context)
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is matches another UserError by code.
func (e *UserError) Is(target error) bool {
	if t, ok := target.(*UserError); ok {
		return e.Code == t.Code
	}
	return false
}

// Format returns the error with code, location, cause and suggestion.
func (e *UserError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  Location: %s", e.Context)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, "\n  Cause: %v", e.Underlying)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	return b.String()
}

// NewUserError creates a new UserError with the given code and message.
func NewUserError(code, message string) *UserError {
	return &UserError{Code: code, Message: message}
}

// WithContext returns a copy with context set.
func (e *UserError) WithContext(ctx string) *UserError {
	cp := *e
	cp.Context = ctx
	return &cp
}

// WithSuggestion returns a copy with suggestion set.
func (e *UserError) WithSuggestion(suggestion string) *UserError {
	cp := *e
	cp.Suggestion = suggestion
	return &cp
}

// WithUnderlying returns a copy wrapping err.
func (e *UserError) WithUnderlying(err error) *UserError {
	cp := *e
	cp.Underlying = err
	return &cp
}

// ErrorList accumulates validation errors so they can be reported together.
type ErrorList struct {
	errors []*UserError
}

// Add appends err if it is not nil.
func (l *ErrorList) Add(err *UserError) {
	if err != nil {
		l.errors = append(l.errors, err)
	}
}

// AddValidation appends a validation failure for field.
func (l *ErrorList) AddValidation(field, message, suggestion string) {
	l.Add(&UserError{
		Code:       ErrCodeValidationFailed,
		Message:    fmt.Sprintf("%s: %s", field, message),
		Context:    field,
		Suggestion: suggestion,
	})
}

// Len returns the number of errors.
func (l *ErrorList) Len() int {
	return len(l.errors)
}

// Errors returns a copy of the collected errors.
func (l *ErrorList) Errors() []*UserError {
	return append([]*UserError(nil), l.errors...)
}

// Error implements error.
func (l *ErrorList) Error() string {
	switch len(l.errors) {
	case 0:
		return ""
	case 1:
		return l.errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:\n", len(l.errors))
	for i, err := range l.errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Format returns every error in its detailed form.
func (l *ErrorList) Format() string {
	parts := make([]string, 0, len(l.errors))
	for _, err := range l.errors {
		parts = append(parts, err.Format())
	}
	return strings.Join(parts, "\n")
}

// AsError returns the list as an error, or nil if it is empty.
func (l *ErrorList) AsError() error {
	if len(l.errors) == 0 {
		return nil
	}
	return l
}

// NewConfigNotFoundError reports a missing configuration file.
func NewConfigNotFoundError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigNotFound,
		Message:    "configuration file not found",
		Context:    path,
		Suggestion: "Check the --config path, or omit it to use the built-in defaults.",
	}
}

// NewConfigParseError reports a YAML configuration file that does not parse.
func NewConfigParseError(path string, err error) *UserError {
	context := path
	if line := yamlLine(err); line != "" {
		context = fmt.Sprintf("%s (line %s)", path, line)
	}
	return &UserError{
		Code:       ErrCodeConfigParse,
		Message:    "failed to parse configuration file",
		Context:    context,
		Suggestion: "Check your YAML syntax: indentation uses spaces and every key needs a colon.",
		Underlying: err,
	}
}

// NewCatalogError reports a catalog that failed to load or validate.
func NewCatalogError(path string, err error) *UserError {
	if path == "" {
		path = "built-in catalog"
	}
	return &UserError{
		Code:       ErrCodeCatalogInvalid,
		Message:    "operation catalog is invalid",
		Context:    path,
		Suggestion: "Every operation step must name a step defined under 'steps', and 'version' must be a v1 semver.",
		Underlying: err,
	}
}

// NewToolsError reports tool bindings that failed to load or validate.
func NewToolsError(path string, err error) *UserError {
	if path == "" {
		path = "built-in tools"
	}
	return &UserError{
		Code:       ErrCodeToolsInvalid,
		Message:    "tool bindings are invalid",
		Context:    path,
		Suggestion: "Each [tool] section needs behavior = step|cauterize|select and a step that exists in the catalog.",
		Underlying: err,
	}
}

// NewOperationUnknownError reports an operation id missing from the catalog.
func NewOperationUnknownError(id string, available []string) *UserError {
	suggestion := "Run 'theatre catalog list' to see the available operations."
	if len(available) > 0 {
		suggestion = "Available operations: " + strings.Join(available, ", ")
	}
	return &UserError{
		Code:       ErrCodeOperationUnknown,
		Message:    fmt.Sprintf("operation '%s' not found", id),
		Suggestion: suggestion,
	}
}

// IsUserError checks whether err carries a UserError with code.
func IsUserError(err error, code string) bool {
	ue := GetUserError(err)
	return ue != nil && ue.Code == code
}

// GetUserError extracts a UserError from an error chain, if present.
func GetUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

func yamlLine(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	idx := strings.Index(s, "line ")
	if idx < 0 {
		return ""
	}
	rest := s[idx+len("line "):]
	end := strings.IndexAny(rest, ": ")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

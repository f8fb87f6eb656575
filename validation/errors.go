package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed matches every *ValidationFailed.
var ErrValidationFailed = errors.New("validation failed")

// FieldError describes one validation failure.
type FieldError struct {
	Field   string `json:"field"`   // field identifier (e.g., "address.city")
	Message string `json:"message"` // human-readable error message
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationFailed is returned when a request has one or more field errors.
type ValidationFailed struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationFailed creates a ValidationFailed carrying errs.
func NewValidationFailed(errs []FieldError) *ValidationFailed {
	return &ValidationFailed{Errors: append([]FieldError(nil), errs...)}
}

func (e *ValidationFailed) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidationFailed.Error()
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s", e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, fe := range e.Errors {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(fe.String())
	}
	return sb.String()
}

// Is implements errors.Is comparison against ErrValidationFailed.
func (e *ValidationFailed) Is(target error) bool {
	return target == ErrValidationFailed
}

// Fields returns the field identifiers in error order. Duplicates are kept.
func (e *ValidationFailed) Fields() []string {
	fields := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		fields[i] = fe.Field
	}
	return fields
}

// As extracts a *ValidationFailed from err's chain.
func As(err error) (*ValidationFailed, bool) {
	var vf *ValidationFailed
	if errors.As(err, &vf) {
		return vf, true
	}
	return nil, false
}

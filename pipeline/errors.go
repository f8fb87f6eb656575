package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmer mistakes detected while dispatching.
var (
	// ErrContractViolation matches every *ContractViolation.
	ErrContractViolation = errors.New("pipeline: contract violation")
	// ErrNextCalledTwice is reported when a behavior calls its continuation more than once.
	ErrNextCalledTwice = errors.New("pipeline: continuation called more than once")
	// ErrTypeMismatch is reported when a handler or behavior is used with the wrong request or response type.
	ErrTypeMismatch = errors.New("pipeline: request or response type mismatch")
	// ErrNilHandler is reported when a pipeline has no terminal handler.
	ErrNilHandler = errors.New("pipeline: nil handler")
	// ErrNilBehavior is reported when a behavior list contains nil.
	ErrNilBehavior = errors.New("pipeline: nil behavior")
)

// ContractViolation is a defect in how the pipeline was composed or used.
// It is never retried and should be fixed in code.
type ContractViolation struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	return fmt.Sprintf("pipeline: contract violation: %s", e.Reason)
}

// Unwrap exposes both ErrContractViolation and the specific kind to errors.Is.
func (e *ContractViolation) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrContractViolation}
	}
	return []error{ErrContractViolation, e.Kind}
}

// NewContractViolation creates a contract violation of the given kind.
func NewContractViolation(kind error, format string, args ...any) *ContractViolation {
	return &ContractViolation{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func newViolation(kind error, format string, args ...any) error {
	return NewContractViolation(kind, format, args...)
}

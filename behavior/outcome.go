package behavior

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/validation"
)

// Outcome labels used by the telemetry behaviors.
const (
	OutcomeSuccess          = "success"
	OutcomeValidationFailed = "validation_failed"
	OutcomeUnauthenticated  = "unauthenticated"
	OutcomeForbidden        = "forbidden"
	OutcomeRateLimited      = "rate_limited"
	OutcomeTimeout          = "timeout"
	OutcomeCanceled         = "canceled"
	OutcomePanic            = "panic"
	OutcomeContract         = "contract_violation"
	OutcomeError            = "error"
)

// Outcome classifies the result of a dispatch into a low-cardinality label.
func Outcome(err error) string {
	var panicErr *PanicError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, validation.ErrValidationFailed):
		return OutcomeValidationFailed
	case errors.Is(err, ErrUnauthenticated):
		return OutcomeUnauthenticated
	case errors.Is(err, ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.As(err, &panicErr):
		return OutcomePanic
	case errors.Is(err, pipeline.ErrContractViolation):
		return OutcomeContract
	default:
		return OutcomeError
	}
}

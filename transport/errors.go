package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/mediator"
	"github.com/felixgeelhaar/mediate/validation"
)

// Transport level failures.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrDraining         = errors.New("server is shutting down")
)

// Error codes that are not dispatch outcomes.
const (
	CodeNotFound        = "not_found"
	CodeBadRequest      = "bad_request"
	CodeTooLarge        = "too_large"
	CodeUnavailable     = "unavailable"
	internalErrorString = "internal error"
)

// StatusError is implemented by handler errors that choose their own status.
// Their message is shown to the caller.
type StatusError interface {
	error
	StatusCode() int
	ErrorCode() string
}

// ErrorBody is the JSON encoding of a failed request.
type ErrorBody struct {
	Error  string                  `json:"error"`
	Code   string                  `json:"code"`
	Errors []validation.FieldError `json:"errors,omitempty"`
}

// StatusCode maps a dispatch error to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case asStatusError(err) != nil:
		return asStatusError(err).StatusCode()
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrDraining):
		return http.StatusServiceUnavailable
	case errors.Is(err, mediator.ErrNoHandler), errors.Is(err, mediator.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, behavior.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, behavior.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, behavior.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorBody describes err for a caller. Messages of unclassified errors
// are not exposed.
func NewErrorBody(err error) ErrorBody {
	if se := asStatusError(err); se != nil {
		return ErrorBody{Error: se.Error(), Code: se.ErrorCode()}
	}

	switch {
	case errors.Is(err, ErrMalformedRequest):
		return ErrorBody{Error: err.Error(), Code: CodeBadRequest}
	case errors.Is(err, ErrBodyTooLarge):
		return ErrorBody{Error: ErrBodyTooLarge.Error(), Code: CodeTooLarge}
	case errors.Is(err, ErrDraining):
		return ErrorBody{Error: ErrDraining.Error(), Code: CodeUnavailable}
	case errors.Is(err, mediator.ErrNoHandler), errors.Is(err, mediator.ErrUnknownRequest):
		return ErrorBody{Error: err.Error(), Code: CodeNotFound}
	}

	outcome := behavior.Outcome(err)
	body := ErrorBody{Code: outcome}

	if vf, ok := validation.As(err); ok {
		body.Error = validation.ErrValidationFailed.Error()
		body.Errors = vf.Errors
		return body
	}

	var authErr *behavior.AuthError
	if errors.As(err, &authErr) {
		body.Error = authErr.Message
		return body
	}

	switch outcome {
	case behavior.OutcomeRateLimited:
		body.Error = behavior.ErrRateLimited.Error()
	case behavior.OutcomeTimeout:
		body.Error = "request timed out"
	case behavior.OutcomeCanceled:
		body.Error = "request canceled"
	default:
		body.Error = internalErrorString
	}
	return body
}

func asStatusError(err error) StatusError {
	var se StatusError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

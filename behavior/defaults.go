package behavior

import (
	"time"

	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/validation"
)

// DefaultStack returns the recommended production behavior stack:
// RequestID, Logging, Recover and Validation. Recover sits inside Logging so
// a recovered panic is logged as a failed request.
func DefaultStack(logger Logger, registry *validation.Registry) []pipeline.Behavior[any, any] {
	return []pipeline.Behavior[any, any]{
		RequestID[any, any](),
		Logging[any, any](logger),
		Recover[any, any](),
		Validation[any, any](registry, WithValidationLogger(logger)),
	}
}

// DefaultStackWithTimeout returns the default stack with a timeout behavior
// placed before validation so the deadline covers validators and the handler.
func DefaultStackWithTimeout(logger Logger, registry *validation.Registry, timeout time.Duration) []pipeline.Behavior[any, any] {
	return []pipeline.Behavior[any, any]{
		RequestID[any, any](),
		Logging[any, any](logger),
		Recover[any, any](),
		Timeout[any, any](timeout),
		Validation[any, any](registry, WithValidationLogger(logger)),
	}
}

// SecureStack is DefaultStack with authorization placed before validation,
// so unauthenticated requests never trigger business-rule validation.
func SecureStack(logger Logger, registry *validation.Registry, authenticator Authenticator, opts ...AuthorizeOption) []pipeline.Behavior[any, any] {
	authOpts := append([]AuthorizeOption{WithAuthLogger(logger)}, opts...)
	return []pipeline.Behavior[any, any]{
		RequestID[any, any](),
		Logging[any, any](logger),
		Recover[any, any](),
		Authorize[any, any](authenticator, authOpts...),
		Validation[any, any](registry, WithValidationLogger(logger)),
	}
}

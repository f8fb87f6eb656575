package behavior

import (
	"context"

	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/validation"
)

// ValidationOption configures the validation behavior.
type ValidationOption func(*validationConfig)

type validationConfig struct {
	logger Logger
}

// WithValidationLogger sets the logger for rejected requests.
func WithValidationLogger(l Logger) ValidationOption {
	return func(c *validationConfig) {
		c.logger = l
	}
}

// Validation returns a behavior that runs every validator registered in
// registry for the request's type. If any field errors are reported the chain
// is short-circuited with a *validation.ValidationFailed carrying all of them;
// otherwise the rest of the chain runs and its result is returned unchanged.
func Validation[Req, Resp any](registry *validation.Registry, opts ...ValidationOption) pipeline.Behavior[Req, Resp] {
	cfg := &validationConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		if errs := registry.Validate(ctx, req); len(errs) > 0 {
			if cfg.logger != nil {
				cfg.logger.Warn("request rejected by validation",
					F("request", RequestName(req)),
					F("errors", len(errs)),
				)
			}
			var zero Resp
			return zero, validation.NewValidationFailed(errs)
		}

		return next(ctx)
	})
}

// ValidateWith returns a validation behavior with its own validators for Req.
// It is meant for per-handler pipelines where Req is a concrete type.
func ValidateWith[Req, Resp any](validators ...validation.Validator[Req]) pipeline.Behavior[Req, Resp] {
	reg := validation.NewRegistry()
	validation.Register(reg, validators...)
	return Validation[Req, Resp](reg)
}

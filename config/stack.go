package config

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/validation"
)

// StackDeps are the runtime collaborators BuildStack wires into behaviors.
// Only Logger and Registry are required.
type StackDeps struct {
	Logger   behavior.Logger
	Registry *validation.Registry

	// Metrics enables the Prometheus behavior when telemetry.metrics is set.
	Metrics *behavior.Metrics

	// Providers for the OpenTelemetry behavior. Nil uses the globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// BuildStack turns cfg into an ordered mediator-wide behavior stack:
//
//	RequestID, Logging, [OTel], [Observe], Recover, [Timeout],
//	[Authorize], [RateLimit], Validation
//
// Bracketed behaviors are included only when enabled in cfg. Authorization
// runs before rate limiting so identity buckets see the caller, and both run
// before validation.
func BuildStack(cfg *Config, deps StackDeps) []pipeline.Behavior[any, any] {
	logger := deps.Logger
	if logger == nil {
		logger = behavior.NopLogger{}
	}
	registry := deps.Registry
	if registry == nil {
		registry = validation.NewRegistry()
	}

	stack := []pipeline.Behavior[any, any]{
		behavior.RequestID[any, any](),
		behavior.Logging[any, any](logger),
	}

	if cfg.Telemetry.Tracing {
		opts := []behavior.OTelOption{behavior.WithOTelServiceName(cfg.Telemetry.ServiceName)}
		if deps.TracerProvider != nil {
			opts = append(opts, behavior.WithTracerProvider(deps.TracerProvider))
		}
		if deps.MeterProvider != nil {
			opts = append(opts, behavior.WithMeterProvider(deps.MeterProvider))
		}
		stack = append(stack, behavior.OTel[any, any](opts...))
	}

	if cfg.Telemetry.Metrics && deps.Metrics != nil {
		stack = append(stack, behavior.Observe[any, any](deps.Metrics))
	}

	stack = append(stack, behavior.Recover[any, any]())

	if cfg.Pipeline.Timeout > 0 {
		stack = append(stack, behavior.Timeout[any, any](cfg.Pipeline.Timeout))
	}

	if cfg.Auth.Enabled {
		stack = append(stack, behavior.Authorize[any, any](cfg.Authenticator(), cfg.authorizeOptions(logger)...))
	}

	if rl := cfg.Pipeline.RateLimit; rl.Enabled {
		opts := []behavior.RateLimitOption{behavior.WithRateLimitLogger(logger)}
		switch rl.Key {
		case "request":
			stack = append(stack, behavior.RateLimitByRequest[any, any](rl.Rate, rl.Burst, opts...))
		case "identity":
			stack = append(stack, behavior.RateLimitByIdentity[any, any](rl.Rate, rl.Burst, opts...))
		default:
			stack = append(stack, behavior.RateLimit[any, any](rl.Rate, rl.Burst, opts...))
		}
	}

	return append(stack, behavior.Validation[any, any](registry, behavior.WithValidationLogger(logger)))
}

// Authenticator accepts the configured tokens as bearer tokens or as an
// X-API-Key header.
func (c *Config) Authenticator() behavior.Authenticator {
	identities := make(map[string]*behavior.Identity, len(c.Auth.Tokens))
	for _, t := range c.Auth.Tokens {
		identities[t.Token] = &behavior.Identity{
			ID:    t.ID,
			Name:  t.Name,
			Roles: append([]string(nil), t.Roles...),
		}
	}
	tokens := behavior.StaticTokens(identities)

	return behavior.ChainAuthenticators(
		behavior.BearerTokenAuthenticator(tokens),
		behavior.APIKeyAuthenticator("X-API-Key", tokens),
	)
}

func (c *Config) authorizeOptions(logger behavior.Logger) []behavior.AuthorizeOption {
	opts := []behavior.AuthorizeOption{behavior.WithAuthLogger(logger)}
	if len(c.Auth.Public) > 0 {
		opts = append(opts, behavior.WithAuthSkipRequests(c.Auth.Public...))
	}
	if len(c.Auth.AdminRequests) > 0 {
		opts = append(opts, behavior.WithPolicy(behavior.RequireRoles(c.Auth.AdminRequests, c.Auth.AdminRole)))
	}
	return opts
}

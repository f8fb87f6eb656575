// Package mediate routes typed requests to their handlers through an
// ordered chain of behaviors.
//
// It provides:
//   - Generic handlers and behaviors with a strict next-once contract
//   - Ready-made behaviors for logging, validation, authorization,
//     rate limiting, timeouts, panics and telemetry
//   - A mediator that registers handlers per request type
//   - HTTP, WebSocket and stdio transports
//
// Basic usage:
//
//	m := mediate.New(mediate.WithBehaviors(mediate.DefaultStack(logger, registry)...))
//
//	type CreateEmployee struct {
//	    Name string `json:"name" validate:"required"`
//	}
//
//	mediate.MustRegister(m, func(ctx context.Context, req CreateEmployee) (Employee, error) {
//	    return store.Create(ctx, req.Name)
//	})
//
//	emp, err := mediate.Send[CreateEmployee, Employee](ctx, m, CreateEmployee{Name: "Ada"})
//
//	mediate.ServeHTTP(ctx, m, ":8080")
package mediate

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/mediator"
	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/transport"
	"github.com/felixgeelhaar/mediate/validation"
)

// Re-export core types for convenience

// Handler handles one request and produces its response.
type Handler[Req, Resp any] = pipeline.Handler[Req, Resp]

// Next continues a pipeline. It may be called at most once.
type Next[Resp any] = pipeline.Next[Resp]

// Behavior wraps the rest of a pipeline.
type Behavior[Req, Resp any] = pipeline.Behavior[Req, Resp]

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc[Req, Resp any] = pipeline.BehaviorFunc[Req, Resp]

// Mediator types
type Mediator = mediator.Mediator
type Option = mediator.Option
type Category = mediator.Category
type RequestInfo = mediator.RequestInfo

// Request categories.
const (
	CategoryCommand = mediator.CategoryCommand
	CategoryQuery   = mediator.CategoryQuery
)

// Behavior support types
type Logger = behavior.Logger
type LogField = behavior.Field
type Metadata = behavior.Metadata
type Identity = behavior.Identity

// Validation types
type FieldError = validation.FieldError
type ValidationFailed = validation.ValidationFailed
type Registry = validation.Registry

// Sentinel errors.
var (
	ErrContractViolation = pipeline.ErrContractViolation
	ErrNextCalledTwice   = pipeline.ErrNextCalledTwice
	ErrValidationFailed  = validation.ErrValidationFailed
	ErrNoHandler         = mediator.ErrNoHandler
	ErrUnauthenticated   = behavior.ErrUnauthenticated
	ErrForbidden         = behavior.ErrForbidden
	ErrRateLimited       = behavior.ErrRateLimited
)

// Mediator options.
var (
	WithLogger    = mediator.WithLogger
	WithBehaviors = mediator.WithBehaviors
)

// New creates a mediator with the given options.
func New(opts ...Option) *Mediator {
	return mediator.New(opts...)
}

// Register adds handler for requests of type Req.
func Register[Req, Resp any](m *Mediator, handler Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) error {
	return mediator.Register(m, handler, behaviors...)
}

// MustRegister is like Register but panics on error.
func MustRegister[Req, Resp any](m *Mediator, handler Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) {
	mediator.MustRegister(m, handler, behaviors...)
}

// Send dispatches req to its handler and returns the typed response.
func Send[Req, Resp any](ctx context.Context, m *Mediator, req Req) (Resp, error) {
	return mediator.Send[Req, Resp](ctx, m, req)
}

// Execute runs handler behind behaviors without a mediator. The first
// behavior is the outermost.
func Execute[Req, Resp any](ctx context.Context, req Req, handler Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) (Resp, error) {
	return pipeline.Execute(ctx, req, handler, behaviors...)
}

// NewRegistry creates an empty validator registry.
func NewRegistry() *Registry {
	return validation.NewRegistry()
}

// DefaultStack returns RequestID, Logging, Recover and Validation.
func DefaultStack(logger Logger, registry *Registry) []Behavior[any, any] {
	return behavior.DefaultStack(logger, registry)
}

// DefaultStackWithTimeout is DefaultStack with a timeout around validation
// and handling.
func DefaultStackWithTimeout(logger Logger, registry *Registry, timeout time.Duration) []Behavior[any, any] {
	return behavior.DefaultStackWithTimeout(logger, registry, timeout)
}

// LogF creates a log field.
func LogF(key string, value any) LogField {
	return behavior.F(key, value)
}

// HTTPOption configures the HTTP transport.
type HTTPOption = transport.HTTPOption

// ServeStdio serves m over stdin and stdout.
// This blocks until stdin is closed or the context is canceled.
func ServeStdio(ctx context.Context, m *Mediator, opts ...transport.StdioOption) error {
	return transport.NewStdio(m, opts...).Serve(ctx)
}

// ServeHTTP serves m over HTTP at addr.
// This blocks until the context is canceled or an error occurs.
func ServeHTTP(ctx context.Context, m *Mediator, addr string, opts ...HTTPOption) error {
	return transport.NewHTTP(addr, m, opts...).Serve(ctx)
}

// WithReadTimeout sets the HTTP read timeout.
func WithReadTimeout(d time.Duration) HTTPOption {
	return transport.WithReadTimeout(d)
}

// WithWriteTimeout sets the HTTP write timeout.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return transport.WithWriteTimeout(d)
}

// WithWebSocket serves the frame protocol over WebSocket at path.
func WithWebSocket(path string, opts ...transport.WebSocketOption) HTTPOption {
	return transport.WithWebSocket(path, opts...)
}

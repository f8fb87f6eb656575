package behavior

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID returns a behavior that injects a unique request ID into the context.
// If a request ID already exists in the context, it is preserved.
func RequestID[Req, Resp any]() pipeline.Behavior[Req, Resp] {
	return RequestIDWithGenerator[Req, Resp](generateID)
}

// RequestIDWithGenerator returns a behavior that uses a custom ID generator.
func RequestIDWithGenerator[Req, Resp any](generator func() string) pipeline.Behavior[Req, Resp] {
	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		// Check if request ID already exists
		if existing := RequestIDFromContext(ctx); existing != "" {
			return next(ctx)
		}

		return next(ContextWithRequestID(ctx, generator()))
	})
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID returns a new context with the request ID set.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func generateID() string {
	return uuid.NewString()
}

package behavior

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// ErrRateLimited is returned when a request exceeds its rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitKeyFunc extracts a rate limit key from a request.
type RateLimitKeyFunc func(ctx context.Context, req any) string

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc RateLimitKeyFunc
	logger  Logger
}

// WithRateLimitKeyFunc sets a function to extract a rate limit key from requests.
// This allows per-client or per-request-type rate limiting.
func WithRateLimitKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.logger = l
	}
}

// RateLimit returns a behavior that limits request rate using a token bucket algorithm.
// The rate is specified as requests per second.
// Burst allows short bursts above the rate limit.
// Rejected requests never reach the rest of the chain.
func RateLimit[Req, Resp any](rate int, burst int, opts ...RateLimitOption) pipeline.Behavior[Req, Resp] {
	cfg := &rateLimitConfig{
		keyFunc: func(context.Context, any) string { return "global" }, // Global by default
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		key := cfg.keyFunc(ctx, req)

		if !limiter.Allow(ctx, key) {
			name := RequestName(req)
			if cfg.logger != nil {
				cfg.logger.Warn("rate limit exceeded",
					F("request", name),
					F("key", key),
				)
			}
			var zero Resp
			return zero, fmt.Errorf("%s: %w", name, ErrRateLimited)
		}

		return next(ctx)
	})
}

// RateLimitByRequest returns rate limiting that applies separate limits per request type.
func RateLimitByRequest[Req, Resp any](rate int, burst int, opts ...RateLimitOption) pipeline.Behavior[Req, Resp] {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(_ context.Context, req any) string {
			return RequestName(req)
		}),
	}, opts...)
	return RateLimit[Req, Resp](rate, burst, allOpts...)
}

// RateLimitByIdentity returns rate limiting that applies separate limits per
// authenticated identity. Anonymous requests share one bucket. Place it after
// Authorize so the identity is in the context.
func RateLimitByIdentity[Req, Resp any](rate int, burst int, opts ...RateLimitOption) pipeline.Behavior[Req, Resp] {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(ctx context.Context, _ any) string {
			if id := IdentityFromContext(ctx); id != nil {
				return "identity:" + id.ID
			}
			return "anonymous"
		}),
	}, opts...)
	return RateLimit[Req, Resp](rate, burst, allOpts...)
}

package behavior

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// Authorization failures. Both are wrapped in *AuthError.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// AuthError is returned when the authorize behavior rejects a request.
type AuthError struct {
	// Err is ErrUnauthenticated or ErrForbidden.
	Err error
	// Request is the rejected request's name.
	Request string
	// Message is safe to show to the caller.
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Request, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Identity represents an authenticated identity.
type Identity struct {
	// ID is a unique identifier for the identity (e.g., user ID, API key ID).
	ID string
	// Name is a human-readable name for the identity.
	Name string
	// Roles are used by RequireRoles policies.
	Roles []string
	// Metadata contains additional identity information.
	Metadata map[string]any
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// identityContextKey is the context key for storing the identity.
type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// ContextWithIdentity returns a new context with the identity attached.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// Authenticator validates credentials and returns an identity.
// It should return nil, nil when no valid credentials were presented.
type Authenticator func(ctx context.Context, req any) (*Identity, error)

// Policy decides whether identity may perform req. A nil error allows it.
type Policy func(ctx context.Context, identity *Identity, req any) error

// AuthorizeOption configures the authorize behavior.
type AuthorizeOption func(*authorizeConfig)

type authorizeConfig struct {
	logger       Logger
	skip         map[string]bool
	policies     []Policy
	errorMessage string
}

// WithAuthLogger sets the logger for auth events.
func WithAuthLogger(l Logger) AuthorizeOption {
	return func(c *authorizeConfig) {
		c.logger = l
	}
}

// WithAuthSkipRequests names requests that don't require authentication.
func WithAuthSkipRequests(names ...string) AuthorizeOption {
	return func(c *authorizeConfig) {
		for _, n := range names {
			c.skip[n] = true
		}
	}
}

// WithPolicy adds an authorization policy. Policies run in order after
// authentication and the first failure rejects the request.
func WithPolicy(p Policy) AuthorizeOption {
	return func(c *authorizeConfig) {
		c.policies = append(c.policies, p)
	}
}

// WithAuthErrorMessage sets a custom error message for authentication failures.
func WithAuthErrorMessage(msg string) AuthorizeOption {
	return func(c *authorizeConfig) {
		c.errorMessage = msg
	}
}

// Authorize returns a behavior that authenticates the caller and applies
// policies before the rest of the chain runs. Rejected requests never reach
// inner behaviors, so it belongs before Validation.
func Authorize[Req, Resp any](authenticator Authenticator, opts ...AuthorizeOption) pipeline.Behavior[Req, Resp] {
	cfg := &authorizeConfig{
		skip:         make(map[string]bool),
		errorMessage: "authentication required",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		var zero Resp
		name := RequestName(req)

		// Skip authentication for certain requests
		if cfg.skip[name] {
			return next(ctx)
		}

		identity, err := authenticator(ctx, req)
		if err != nil || identity == nil {
			if cfg.logger != nil {
				fields := []Field{F("request", name)}
				if err != nil {
					fields = append(fields, F("error", err.Error()))
				}
				cfg.logger.Warn("authentication failed", fields...)
			}
			return zero, &AuthError{Err: ErrUnauthenticated, Request: name, Message: cfg.errorMessage}
		}

		for _, policy := range cfg.policies {
			if err := policy(ctx, identity, req); err != nil {
				if cfg.logger != nil {
					cfg.logger.Warn("authorization denied",
						F("request", name),
						F("identity", identity.ID),
						F("error", err.Error()),
					)
				}
				return zero, &AuthError{Err: ErrForbidden, Request: name, Message: err.Error()}
			}
		}

		if cfg.logger != nil {
			cfg.logger.Debug("authenticated",
				F("request", name),
				F("identity", identity.ID),
			)
		}

		// Add identity to context and continue
		return next(ContextWithIdentity(ctx, identity))
	})
}

// RequireRoles returns a policy that requires the identity to hold at least
// one of roles for the named requests. Requests not listed are allowed.
func RequireRoles(requests []string, roles ...string) Policy {
	guarded := make(map[string]bool, len(requests))
	for _, r := range requests {
		guarded[r] = true
	}
	return func(_ context.Context, identity *Identity, req any) error {
		if !guarded[RequestName(req)] {
			return nil
		}
		for _, role := range roles {
			if identity.HasRole(role) {
				return nil
			}
		}
		return fmt.Errorf("requires one of roles: %s", strings.Join(roles, ", "))
	}
}

// APIKeyAuthenticator creates an authenticator that validates API keys read
// from request metadata under key. keyValidator returns nil for invalid keys.
func APIKeyAuthenticator(key string, keyValidator func(key string) *Identity) Authenticator {
	return func(ctx context.Context, _ any) (*Identity, error) {
		value := GetMetadata(ctx, key)
		if value == "" {
			// Also check common variations
			value = GetMetadata(ctx, strings.ToLower(key))
		}
		if value == "" {
			return nil, nil
		}

		return keyValidator(value), nil
	}
}

// BearerTokenAuthenticator creates an authenticator that validates bearer
// tokens from the Authorization metadata. tokenValidator returns nil for
// invalid tokens.
func BearerTokenAuthenticator(tokenValidator func(token string) *Identity) Authenticator {
	return func(ctx context.Context, _ any) (*Identity, error) {
		auth := GetMetadata(ctx, "Authorization")
		if auth == "" {
			auth = GetMetadata(ctx, "authorization")
		}
		if auth == "" {
			return nil, nil
		}

		// Parse "Bearer <token>"
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return nil, nil
		}

		token := strings.TrimPrefix(auth, prefix)
		if token == "" {
			return nil, nil
		}

		return tokenValidator(token), nil
	}
}

// StaticTokens creates a simple validator from a map of token -> identity.
// It serves both BearerTokenAuthenticator and APIKeyAuthenticator.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity {
		return tokens[token]
	}
}

// ChainAuthenticators chains multiple authenticators, returning the first successful identity.
func ChainAuthenticators(authenticators ...Authenticator) Authenticator {
	return func(ctx context.Context, req any) (*Identity, error) {
		for _, auth := range authenticators {
			identity, err := auth(ctx, req)
			if err != nil {
				return nil, err
			}
			if identity != nil {
				return identity, nil
			}
		}
		return nil, nil
	}
}

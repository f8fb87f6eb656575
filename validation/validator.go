package validation

import (
	"context"
	"reflect"
	"sync"
)

// Validator checks a request and returns zero or more field errors.
type Validator[Req any] interface {
	Validate(ctx context.Context, req Req) []FieldError
}

// ValidatorFunc is an adapter to allow ordinary functions as validators.
type ValidatorFunc[Req any] func(ctx context.Context, req Req) []FieldError

// Validate calls f(ctx, req).
func (f ValidatorFunc[Req]) Validate(ctx context.Context, req Req) []FieldError {
	return f(ctx, req)
}

// validateFunc is a validator with its request type erased.
type validateFunc func(ctx context.Context, req any) []FieldError

// Registry holds validators keyed by concrete request type.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	validators map[reflect.Type][]validateFunc
}

// NewRegistry creates an empty validator registry.
func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[reflect.Type][]validateFunc),
	}
}

// Register adds validators for requests of type Req.
// Validators run in registration order. Req should be the concrete type that
// is dispatched; validators registered for an interface type never match.
func Register[Req any](r *Registry, validators ...Validator[Req]) {
	t := reflect.TypeFor[Req]()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range validators {
		if v == nil {
			continue
		}
		v := v
		r.validators[t] = append(r.validators[t], func(ctx context.Context, req any) []FieldError {
			typed, ok := req.(Req)
			if !ok {
				return nil
			}
			return v.Validate(ctx, typed)
		})
	}
}

// Validate runs every validator registered for req's dynamic type and returns
// the union of their field errors in registration order. Requests with no
// registered validators produce no errors.
func (r *Registry) Validate(ctx context.Context, req any) []FieldError {
	t := reflect.TypeOf(req)
	if t == nil {
		return nil
	}

	r.mu.RLock()
	validators := r.validators[t]
	r.mu.RUnlock()

	var errs []FieldError
	for _, v := range validators {
		errs = append(errs, v(ctx, req)...)
	}
	return errs
}

// Has reports whether any validators are registered for req's dynamic type.
func (r *Registry) Has(req any) bool {
	t := reflect.TypeOf(req)
	if t == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators[t]) > 0
}

// Check validates req and returns a *ValidationFailed if any field errors were found.
func (r *Registry) Check(ctx context.Context, req any) error {
	if errs := r.Validate(ctx, req); len(errs) > 0 {
		return NewValidationFailed(errs)
	}
	return nil
}

package behavior

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/mediate/pipeline"
	"github.com/felixgeelhaar/mediate/validation"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: OutcomeSuccess},
		{name: "validation", err: validation.NewValidationFailed([]validation.FieldError{{Field: "f", Message: "m"}}), want: OutcomeValidationFailed},
		{name: "unauthenticated", err: &AuthError{Err: ErrUnauthenticated}, want: OutcomeUnauthenticated},
		{name: "forbidden", err: &AuthError{Err: ErrForbidden}, want: OutcomeForbidden},
		{name: "rate limited", err: fmt.Errorf("greet: %w", ErrRateLimited), want: OutcomeRateLimited},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: OutcomeTimeout},
		{name: "canceled", err: context.Canceled, want: OutcomeCanceled},
		{name: "panic", err: &PanicError{Request: "greet", Value: "boom"}, want: OutcomePanic},
		{name: "panic with error value", err: &PanicError{Value: errors.New("boom")}, want: OutcomePanic},
		{name: "contract", err: pipeline.NewContractViolation(pipeline.ErrNextCalledTwice, "twice"), want: OutcomeContract},
		{name: "other", err: errors.New("boom"), want: OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

type namedRequest struct{}

func (namedRequest) RequestName() string { return "custom.name" }

func TestRequestName(t *testing.T) {
	tests := []struct {
		name string
		req  any
		want string
	}{
		{name: "value", req: greet{}, want: "greet"},
		{name: "pointer", req: &greet{}, want: "greet"},
		{name: "named", req: namedRequest{}, want: "custom.name"},
		{name: "nil", req: nil, want: "<nil>"},
		{name: "unnamed type", req: []int{1}, want: "[]int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestName(tt.req); got != tt.want {
				t.Errorf("RequestName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	if MetadataFromContext(ctx) != nil {
		t.Error("expected nil metadata")
	}
	if GetMetadata(ctx, "k") != "" {
		t.Error("expected empty value")
	}

	parent := ContextWithMetadata(ctx, Metadata{"a": "1"})
	child := SetMetadata(parent, "b", "2")

	if GetMetadata(child, "a") != "1" || GetMetadata(child, "b") != "2" {
		t.Errorf("child metadata = %v", MetadataFromContext(child))
	}
	if GetMetadata(parent, "b") != "" {
		t.Error("SetMetadata must not modify the parent map")
	}
}

package transport_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/mediator"
	"github.com/felixgeelhaar/mediate/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type createEmployee struct {
	Name string `json:"name"`
}

type employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type deleteEmployee struct {
	ID string `json:"id"`
}

type slowRequest struct {
	Delay time.Duration `json:"delay"`
}

type explode struct{}

type missingEmployee struct{ id string }

func (e missingEmployee) Error() string     { return "employee " + e.id + " not found" }
func (e missingEmployee) StatusCode() int   { return http.StatusNotFound }
func (e missingEmployee) ErrorCode() string { return "employee_not_found" }

// newTestMediator registers a small employee API behind
// [Recover, Authorize, Validation]. Only deleteEmployee requires a token.
func newTestMediator(t *testing.T) *mediator.Mediator {
	t.Helper()

	registry := validation.NewRegistry()
	validation.Register[createEmployee](registry, validation.ValidatorFunc[createEmployee](func(_ context.Context, req createEmployee) []validation.FieldError {
		return new(validation.Rules).Required("name", req.Name).Errors()
	}))

	auth := behavior.BearerTokenAuthenticator(behavior.StaticTokens(map[string]*behavior.Identity{
		"secret": {ID: "ops"},
	}))

	m := mediator.New()
	mustNoErr(t, m.Use(behavior.Recover[any, any]()))
	mustNoErr(t, m.Use(behavior.Authorize[any, any](auth,
		behavior.WithAuthSkipRequests("createEmployee", "slowRequest", "explode"))))
	mustNoErr(t, m.Use(behavior.Validation[any, any](registry)))

	mediator.MustRegister(m, func(ctx context.Context, req createEmployee) (employee, error) {
		return employee{ID: behavior.RequestIDFromContext(ctx), Name: req.Name}, nil
	})
	mediator.MustRegister(m, func(_ context.Context, req deleteEmployee) (employee, error) {
		if req.ID == "missing" {
			return employee{}, missingEmployee{id: req.ID}
		}
		return employee{ID: req.ID}, nil
	})
	mediator.MustRegister(m, func(ctx context.Context, req slowRequest) (string, error) {
		select {
		case <-time.After(req.Delay):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	mediator.MustRegister(m, func(context.Context, explode) (string, error) {
		return "", errors.New("database password is hunter2")
	})
	return m
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Package mediator routes requests to their registered handler through a
// shared behavior pipeline.
//
// Handlers are registered per request type with Register, behaviors that
// apply to every request are added with Use, and requests are sent with Send
// (typed) or Dispatch (untyped, for transports):
//
//	m := mediator.New()
//	m.Use(behavior.Logging[any, any](logger))
//	m.Use(behavior.Validation[any, any](registry))
//
//	mediator.Register(m, func(ctx context.Context, req CreateEmployee) (Employee, error) {
//	    return store.Create(ctx, req)
//	})
//
//	emp, err := mediator.Send[CreateEmployee, Employee](ctx, m, CreateEmployee{Name: "Ada"})
//
// Mediator-wide behaviors run outside the behaviors passed to Register, in
// the order they were added.
package mediator

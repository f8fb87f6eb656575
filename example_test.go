package mediate_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mediate"
	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/validation"
)

type CreateEmployee struct {
	Name string `json:"name" validate:"required"`
}

type Employee struct {
	ID   string
	Name string
}

// Example shows a mediator with validation in front of a handler.
func Example() {
	registry := mediate.NewRegistry()
	validation.Register[CreateEmployee](registry, validation.MustStruct[CreateEmployee]())

	m := mediate.New(mediate.WithBehaviors(
		behavior.Recover[any, any](),
		behavior.Validation[any, any](registry),
	))

	mediate.MustRegister(m, func(_ context.Context, req CreateEmployee) (Employee, error) {
		return Employee{ID: "e-1", Name: req.Name}, nil
	})

	emp, err := mediate.Send[CreateEmployee, Employee](context.Background(), m, CreateEmployee{Name: "Ada"})
	fmt.Println(emp.Name, err)

	_, err = mediate.Send[CreateEmployee, Employee](context.Background(), m, CreateEmployee{})
	var vf *mediate.ValidationFailed
	if errors.As(err, &vf) {
		for _, fe := range vf.Errors {
			fmt.Printf("%s: %s\n", fe.Field, fe.Message)
		}
	}

	// Output:
	// Ada <nil>
	// name: must not be empty
}

// ExampleExecute runs a single pipeline without a mediator.
func ExampleExecute() {
	shout := mediate.BehaviorFunc[string, string](func(ctx context.Context, req string, next mediate.Next[string]) (string, error) {
		resp, err := next(ctx)
		return resp + "!", err
	})

	resp, _ := mediate.Execute(context.Background(), "hello",
		func(_ context.Context, req string) (string, error) { return req + " world", nil },
		shout)
	fmt.Println(resp)

	// Output: hello world!
}

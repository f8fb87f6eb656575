// Package validation provides per-request-type validators that report
// field-level errors.
//
// Validators are registered against a concrete request type and discovered by
// the request's dynamic type at dispatch time. Every validator for a type runs,
// and their field errors are aggregated rather than stopping at the first one.
//
// # Basic Usage
//
// Register validators for a request type:
//
//	reg := validation.NewRegistry()
//
//	validation.Register(reg, validation.ValidatorFunc[CreateEmployee](
//	    func(ctx context.Context, req CreateEmployee) []validation.FieldError {
//	        return new(validation.Rules).
//	            Required("name", req.Name).
//	            Email("email", req.Email).
//	            Errors()
//	    }))
//
//	errs := reg.Validate(ctx, CreateEmployee{})
//
// # Struct Tags
//
// Struct builds a validator from `validate` struct tags:
//
//	type CreateEmployee struct {
//	    // json tag controls the reported field name
//	    Name  string `json:"name" validate:"required,max=100"`
//	    Email string `json:"email" validate:"email"`
//	    Level int    `json:"level" validate:"min=1,max=9"`
//	    Team  string `json:"team" validate:"oneof=eng|ops|sales"`
//	}
//
//	validation.Register(reg, validation.MustStruct[CreateEmployee]())
//
// # Errors
//
// A request that fails validation is reported as *ValidationFailed, which
// carries every FieldError and matches ErrValidationFailed with errors.Is.
package validation

// Package schema generates JSON Schema descriptions of request types.
//
// The HTTP transport publishes one schema per registered request on
// GET /requests so clients can discover what each request accepts.
//
// # Basic Usage
//
//	type CreateEmployee struct {
//	    Name  string `json:"name" validate:"required,max=100" description:"Full name"`
//	    Email string `json:"email" validate:"required,email"`
//	    Role  string `json:"role" validate:"oneof=engineer|manager"`
//	}
//
//	s := schema.Generate(CreateEmployee{})
//
// # Struct Tags
//
//   - json: property name, "-" skips the field
//   - validate: required, min=N, max=N, email and oneof=a|b map to
//     required, minLength/maxLength (strings), minItems/maxItems (slices),
//     minimum/maximum (numbers), format and enum
//   - description: property description
//
// Pointers are dereferenced, time.Time is a date-time string and recursive
// types stop at the first repetition.
package schema

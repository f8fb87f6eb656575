package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Rules collects field errors from a sequence of checks.
// A zero Rules is ready to use.
//
//	errs := new(validation.Rules).
//	    Required("name", req.Name).
//	    MaxLength("name", req.Name, 100).
//	    Errors()
type Rules struct {
	errs []FieldError
}

// Add records a field error.
func (r *Rules) Add(field, message string) *Rules {
	r.errs = append(r.errs, FieldError{Field: field, Message: message})
	return r
}

// Check records message for field when ok is false.
func (r *Rules) Check(ok bool, field, message string) *Rules {
	if !ok {
		r.Add(field, message)
	}
	return r
}

// Required fails when value is empty or only whitespace.
func (r *Rules) Required(field, value string) *Rules {
	return r.Check(strings.TrimSpace(value) != "", field, "must not be empty")
}

// MinLength fails when a non-empty value has fewer than n characters.
func (r *Rules) MinLength(field, value string, n int) *Rules {
	if value == "" {
		return r
	}
	return r.Check(utf8.RuneCountInString(value) >= n, field, fmt.Sprintf("must be at least %d characters", n))
}

// MaxLength fails when value has more than n characters.
func (r *Rules) MaxLength(field, value string, n int) *Rules {
	return r.Check(utf8.RuneCountInString(value) <= n, field, fmt.Sprintf("must be at most %d characters", n))
}

// Email fails when a non-empty value is not a bare email address.
func (r *Rules) Email(field, value string) *Rules {
	if value == "" {
		return r
	}
	addr, err := mail.ParseAddress(value)
	return r.Check(err == nil && addr.Address == value, field, "must be a valid email address")
}

// Range fails when value is outside [lo, hi].
func (r *Rules) Range(field string, value, lo, hi int) *Rules {
	return r.Check(value >= lo && value <= hi, field, fmt.Sprintf("must be between %d and %d", lo, hi))
}

// OneOf fails when a non-empty value is not one of allowed.
func (r *Rules) OneOf(field, value string, allowed ...string) *Rules {
	if value == "" {
		return r
	}
	for _, a := range allowed {
		if a == value {
			return r
		}
	}
	return r.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// Errors returns the collected field errors, or nil if there are none.
func (r *Rules) Errors() []FieldError {
	if len(r.errs) == 0 {
		return nil
	}
	return append([]FieldError(nil), r.errs...)
}

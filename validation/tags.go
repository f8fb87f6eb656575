package validation

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// fieldRule is the parsed `validate` tag of one struct field.
type fieldRule struct {
	index    []int
	name     string
	required bool
	min      *float64
	max      *float64
	email    bool
	oneOf    []string
}

// Struct creates a validator from the `validate` struct tags of Req.
// Req must be a struct or a pointer to a struct.
//
// Supported rules: required, min=N, max=N, email, oneof=a|b|c.
// For strings min and max bound the length, for numbers the value, and for
// slices and maps the number of elements.
func Struct[Req any]() (Validator[Req], error) {
	t := reflect.TypeFor[Req]()
	isPtr := false
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		isPtr = true
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("validation: %s is not a struct", t)
	}

	rules, err := collectRules(t, nil, "", map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}

	return ValidatorFunc[Req](func(_ context.Context, req Req) []FieldError {
		v := reflect.ValueOf(req)
		if isPtr {
			if v.IsNil() {
				return []FieldError{{Message: "request is nil"}}
			}
			v = v.Elem()
		}

		var r Rules
		for _, fr := range rules {
			fv, ok := fieldByIndex(v, fr.index)
			fr.check(fv, ok, &r)
		}
		return r.Errors()
	}), nil
}

// MustStruct is like Struct but panics if the tags cannot be parsed.
func MustStruct[Req any]() Validator[Req] {
	v, err := Struct[Req]()
	if err != nil {
		panic(err)
	}
	return v
}

var timeType = reflect.TypeOf(time.Time{})

func collectRules(t reflect.Type, index []int, prefix string, visiting map[reflect.Type]bool) ([]fieldRule, error) {
	var rules []fieldRule
	visiting[t] = true
	defer delete(visiting, t)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}
		path := joinPath(prefix, fieldName)
		fieldIndex := append(append([]int(nil), index...), i)

		tag := field.Tag.Get("validate")
		if tag != "" {
			fr, err := parseValidateTag(tag)
			if err != nil {
				return nil, fmt.Errorf("validation: field %s: %w", path, err)
			}
			fr.index = fieldIndex
			fr.name = path
			rules = append(rules, fr)
		}

		// Descend into nested structs, stopping at recursive types
		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != timeType && !visiting[ft] {
			nested, err := collectRules(ft, fieldIndex, path, visiting)
			if err != nil {
				return nil, err
			}
			rules = append(rules, nested...)
		}
	}

	return rules, nil
}

func parseValidateTag(tag string) (fieldRule, error) {
	var fr fieldRule

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, value, _ := strings.Cut(part, "=")

		switch key {
		case "":
			continue
		case "required":
			fr.required = true
		case "email":
			fr.email = true
		case "min", "max":
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fr, fmt.Errorf("invalid %s value %q", key, value)
			}
			if key == "min" {
				fr.min = &n
			} else {
				fr.max = &n
			}
		case "oneof":
			if value == "" {
				return fr, fmt.Errorf("oneof needs at least one value")
			}
			fr.oneOf = strings.Split(value, "|")
		default:
			return fr, fmt.Errorf("unknown rule %q", key)
		}
	}

	return fr, nil
}

// fieldByIndex walks index, reporting false when it crosses a nil pointer.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func (fr fieldRule) check(v reflect.Value, present bool, r *Rules) {
	// Fields of an absent optional struct are not checked
	if !present {
		return
	}

	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			if fr.required {
				r.Add(fr.name, "is required")
			}
			return
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		s := v.String()
		if fr.required {
			r.Required(fr.name, s)
		}
		if s == "" {
			return
		}
		fr.checkBounds(float64(utf8.RuneCountInString(s)), "characters", r)
		if fr.email {
			r.Email(fr.name, s)
		}
		if len(fr.oneOf) > 0 {
			r.OneOf(fr.name, s, fr.oneOf...)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fr.checkRequired(v, r)
		fr.checkBounds(float64(v.Int()), "", r)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fr.checkRequired(v, r)
		fr.checkBounds(float64(v.Uint()), "", r)
	case reflect.Float32, reflect.Float64:
		fr.checkRequired(v, r)
		fr.checkBounds(v.Float(), "", r)
	case reflect.Slice, reflect.Map, reflect.Array:
		if fr.required && v.Len() == 0 {
			r.Add(fr.name, "must not be empty")
			return
		}
		fr.checkBounds(float64(v.Len()), "items", r)
	default:
		fr.checkRequired(v, r)
	}
}

func (fr fieldRule) checkRequired(v reflect.Value, r *Rules) {
	if fr.required && v.IsZero() {
		r.Add(fr.name, "is required")
	}
}

func (fr fieldRule) checkBounds(n float64, unit string, r *Rules) {
	suffix := ""
	if unit != "" {
		suffix = " " + unit
	}
	if fr.min != nil && n < *fr.min {
		r.Add(fr.name, fmt.Sprintf("must be at least %v%s", *fr.min, suffix))
	}
	if fr.max != nil && n > *fr.max {
		r.Add(fr.name, fmt.Sprintf("must be at most %v%s", *fr.max, suffix))
	}
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

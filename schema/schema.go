// Package schema describes request payloads as JSON Schema.
package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Schema represents a JSON Schema.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Description string             `json:"description,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	MinLength   *int               `json:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty"`
	MinItems    *int               `json:"minItems,omitempty"`
	MaxItems    *int               `json:"maxItems,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// Generate creates a JSON Schema from a Go value.
func Generate(v any) *Schema {
	return GenerateFromType(reflect.TypeOf(v))
}

// GenerateFromType creates a JSON Schema from a reflect.Type. Field names
// follow the json tag and constraints follow the validate tag, so the
// schema matches what the request decoder and validators accept.
func GenerateFromType(t reflect.Type) *Schema {
	if t == nil {
		return &Schema{}
	}
	return generateFromType(t, map[reflect.Type]bool{})
}

var timeType = reflect.TypeOf(time.Time{})

func generateFromType(t reflect.Type, visiting map[reflect.Type]bool) *Schema {
	// Handle pointers
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch {
	case t == timeType:
		return &Schema{Type: "string", Format: "date-time"}
	case t == reflect.TypeOf(time.Duration(0)):
		return &Schema{Type: "integer", Description: "nanoseconds"}
	}

	switch t.Kind() {
	case reflect.Struct:
		if visiting[t] {
			return &Schema{Type: "object"}
		}
		visiting[t] = true
		defer delete(visiting, t)
		return generateStructSchema(t, visiting)
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: "string", Format: "byte"}
		}
		return &Schema{Type: "array", Items: generateFromType(t.Elem(), visiting)}
	case reflect.Map:
		return &Schema{Type: "object"}
	default:
		return &Schema{}
	}
}

func generateStructSchema(t reflect.Type, visiting map[reflect.Type]bool) *Schema {
	schema := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}

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

		fieldSchema := generateFromType(field.Type, visiting)
		fieldSchema.Description = field.Tag.Get("description")
		if applyValidateTag(field.Tag.Get("validate"), fieldSchema) {
			schema.Required = append(schema.Required, fieldName)
		}

		schema.Properties[fieldName] = fieldSchema
	}

	return schema
}

// applyValidateTag copies the validate rules onto schema and reports whether
// the field is required. Malformed rules are ignored here; the validators
// report them.
func applyValidateTag(tag string, schema *Schema) bool {
	required := false

	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")

		switch key {
		case "required":
			required = true
		case "email":
			schema.Format = "email"
		case "oneof":
			for _, v := range strings.Split(value, "|") {
				schema.Enum = append(schema.Enum, v)
			}
		case "min", "max":
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			setBound(schema, key == "min", n)
		}
	}

	if required && schema.Type == "string" && schema.MinLength == nil {
		one := 1
		schema.MinLength = &one
	}
	return required
}

func setBound(schema *Schema, lower bool, n float64) {
	switch schema.Type {
	case "string":
		if lower {
			schema.MinLength = intPtr(n)
		} else {
			schema.MaxLength = intPtr(n)
		}
	case "array":
		if lower {
			schema.MinItems = intPtr(n)
		} else {
			schema.MaxItems = intPtr(n)
		}
	case "integer", "number":
		if lower {
			schema.Minimum = &n
		} else {
			schema.Maximum = &n
		}
	}
}

func intPtr(n float64) *int {
	i := int(n)
	return &i
}

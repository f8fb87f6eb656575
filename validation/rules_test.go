package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRules(t *testing.T) {
	tests := []struct {
		name  string
		rules *Rules
		want  []FieldError
	}{
		{
			name:  "required passes",
			rules: new(Rules).Required("name", "Ada"),
		},
		{
			name:  "required rejects whitespace",
			rules: new(Rules).Required("name", "  "),
			want:  []FieldError{{Field: "name", Message: "must not be empty"}},
		},
		{
			name:  "min length skips empty",
			rules: new(Rules).MinLength("name", "", 3),
		},
		{
			name:  "min length counts runes",
			rules: new(Rules).MinLength("name", "äö", 3),
			want:  []FieldError{{Field: "name", Message: "must be at least 3 characters"}},
		},
		{
			name:  "max length",
			rules: new(Rules).MaxLength("name", "abcd", 3),
			want:  []FieldError{{Field: "name", Message: "must be at most 3 characters"}},
		},
		{
			name:  "email accepts bare address",
			rules: new(Rules).Email("email", "ada@example.com"),
		},
		{
			name:  "email rejects display name form",
			rules: new(Rules).Email("email", "Ada <ada@example.com>"),
			want:  []FieldError{{Field: "email", Message: "must be a valid email address"}},
		},
		{
			name:  "email rejects garbage",
			rules: new(Rules).Email("email", "not-an-email"),
			want:  []FieldError{{Field: "email", Message: "must be a valid email address"}},
		},
		{
			name:  "range",
			rules: new(Rules).Range("level", 10, 1, 9),
			want:  []FieldError{{Field: "level", Message: "must be between 1 and 9"}},
		},
		{
			name:  "one of",
			rules: new(Rules).OneOf("team", "hr", "eng", "ops"),
			want:  []FieldError{{Field: "team", Message: "must be one of: eng, ops"}},
		},
		{
			name:  "checks accumulate in order",
			rules: new(Rules).Required("name", "").Check(false, "email", "taken").Required("title", ""),
			want: []FieldError{
				{Field: "name", Message: "must not be empty"},
				{Field: "email", Message: "taken"},
				{Field: "title", Message: "must not be empty"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rules.Errors())
		})
	}
}

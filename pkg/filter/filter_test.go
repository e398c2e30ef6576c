package filter

import (
	"testing"

	"github.com/traceviz/traceviz/pkg/errors"
)

func mustCompile(t *testing.T, expr string) *Matcher {
	t.Helper()
	m, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	return m
}

func TestMatches(t *testing.T) {
	attrs := map[string]string{
		"category": "req",
		"status":   "draft",
		"version":  "10",
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"Equal", `category == "req"`, true},
		{"EqualMiss", `category == "test"`, false},
		{"NotEqual", `category != "test"`, true},
		{"SingleQuoted", `category == 'req'`, true},
		{"NumericGreater", `version > 9`, true},
		{"NumericLess", `version < 2`, false},
		{"NumericGreaterEqual", `version >= 10`, true},
		{"LexicographicFallback", `status > "apple"`, true},
		{"In", `status in ["draft", "review"]`, true},
		{"InMiss", `status in ["approved", "review"]`, false},
		{"NotIn", `status not in ["approved"]`, true},
		{"And", `category == "req" and status == "draft"`, true},
		{"AndShortCircuit", `category == "nope" and status == "draft"`, false},
		{"Or", `category == "nope" or version == 10`, true},
		{"Not", `not category == "test"`, true},
		{"Parens", `(category == "nope" or status == "draft") and version >= 2`, true},
		{"Precedence", `category == "nope" and status == "nope" or version == 10`, true},
		{"AbsentAttributeIsEmpty", `owner == ""`, true},
		{"AbsentAttributeNotEqual", `owner == "alice"`, false},
		{"Empty", ``, true},
		{"Whitespace", `   `, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustCompile(t, tt.expr).Matches(attrs)
			if err != nil {
				t.Fatalf("Matches: %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"SingleEquals", `category = "req"`},
		{"DanglingOperator", `category ==`},
		{"UnclosedParen", `(category == "req"`},
		{"UnclosedList", `status in ["draft"`},
		{"UnterminatedString", `category == 'req`},
		{"TrailingGarbage", `category == "req" category`},
		{"BareKeyword", `in == "req"`},
		{"NotWithoutIn", `status not between`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			if err == nil {
				t.Fatalf("Compile(%q) should fail", tt.expr)
			}
			if !errors.Is(err, errors.ErrCodeInvalidFilter) {
				t.Errorf("error code = %v, want %s", err, errors.ErrCodeInvalidFilter)
			}
		})
	}
}

func TestMatches_NotACondition(t *testing.T) {
	m := mustCompile(t, `category`)
	if _, err := m.Matches(map[string]string{"category": "req"}); err == nil {
		t.Error("a bare value is not a condition and must error at evaluation")
	}
}

package tristate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiftLiterals(t *testing.T) {
	tests := []struct {
		name         string
		expr         string
		expectedStr  string
		expectedArgs map[string]any
	}{
		{
			name:        "basic case",
			expr:        `FOO == "test/yolo"`,
			expectedStr: "FOO == vars.a",
			expectedArgs: map[string]any{
				"a": "test/yolo",
			},
		},
		{
			name:        "basic case with single quotes",
			expr:        `FOO == 'test/yolo'`,
			expectedStr: "FOO == vars.a",
			expectedArgs: map[string]any{
				"a": "test/yolo",
			},
		},
		{
			name:        "multiple values",
			expr:        `FOO == "test/yolo" || FOO == 'test/foobar'`,
			expectedStr: "FOO == vars.a || FOO == vars.b",
			expectedArgs: map[string]any{
				"a": "test/yolo",
				"b": "test/foobar",
			},
		},
		{
			name:        "quotes of the other kind",
			expr:        `FOO == "it's" && BAR == 'say "hi"'`,
			expectedStr: "FOO == vars.a && BAR == vars.b",
			expectedArgs: map[string]any{
				"a": "it's",
				"b": `say "hi"`,
			},
		},
		{
			name:        "function arguments",
			expr:        `content.phrase(BODY, 'quick fox') && NAME.matches('bob.*')`,
			expectedStr: "content.phrase(BODY, vars.a) && NAME.matches(vars.b)",
			expectedArgs: map[string]any{
				"a": "quick fox",
				"b": "bob.*",
			},
		},
		{
			name:         "numbers are left in place",
			expr:         `SPEED > 100 && SPEED < 1.5`,
			expectedStr:  "SPEED > 100 && SPEED < 1.5",
			expectedArgs: map[string]any{},
		},
		{
			name:        "identifiers named like string prefixes",
			expr:        `r == 'one' && b == "two"`,
			expectedStr: "r == vars.a && b == vars.b",
			expectedArgs: map[string]any{
				"a": "one",
				"b": "two",
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			expr, vars := liftLiterals(test.expr)

			assert.Equal(t, test.expectedStr, expr)
			if assert.NotNil(t, vars) {
				assert.Equal(t, test.expectedArgs, vars.Map())
			}
		})
	}
}

func TestLiftLiterals_Unchanged(t *testing.T) {
	for _, expr := range []string{
		`FOO == 'it\'s'`,
		`FOO == r'raw'`,
		`FOO == b"bytes"`,
		`FOO == '''triple'''`,
		`FOO == 'unterminated`,
	} {
		t.Run(expr, func(t *testing.T) {
			lifted, vars := liftLiterals(expr)
			assert.Equal(t, expr, lifted)
			assert.Nil(t, vars)
		})
	}
}

func TestLiftLiterals_ManyLiterals(t *testing.T) {
	parts := make([]string, 30)
	for i := range parts {
		parts[i] = fmt.Sprintf("F%d == 'v%d'", i, i)
	}
	expr, vars := liftLiterals(strings.Join(parts, " || "))

	assert.Len(t, vars.Map(), len(liftNames))
	got, ok := vars.Get("z")
	assert.True(t, ok)
	assert.Equal(t, "v25", got)
	assert.Contains(t, expr, "F25 == vars.z")
	assert.Contains(t, expr, "F26 == 'v26'")
	assert.Contains(t, expr, "F29 == 'v29'")

	_, ok = vars.Get("aa")
	assert.False(t, ok)
}

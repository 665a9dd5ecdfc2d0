package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArithmetic(t *testing.T) {
	vars := map[string]any{
		"price":    float64(20),
		"quantity": float64(3),
		"discount": 0.1,
	}

	tests := []struct {
		name       string
		expression string
		want       any
	}{
		{name: "addition", expression: "1 + 2", want: float64(3)},
		{name: "precedence", expression: "2 + 3 * 4", want: float64(14)},
		{name: "parentheses", expression: "(2 + 3) * 4", want: float64(20)},
		{name: "variables", expression: "price * quantity", want: float64(60)},
		{name: "mixed", expression: "price * quantity * (1 - discount)", want: float64(54)},
		{name: "modulo", expression: "10 % 3", want: float64(1)},
		{name: "unary minus", expression: "-5 + 10", want: float64(5)},
		{name: "string concat", expression: "'a' + 'b'", want: "ab"},
		{name: "numeric string addition", expression: "'2' + 3", want: float64(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expression, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateComparisonsAndLogic(t *testing.T) {
	vars := map[string]any{
		"amount": float64(150),
		"status": "active",
		"user":   map[string]any{"role": "admin", "age": float64(34)},
	}

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{name: "numeric greater", expression: "amount > 100", want: true},
		{name: "numeric string coercion", expression: "amount > '100'", want: true},
		{name: "equality", expression: "status == 'active'", want: true},
		{name: "inequality", expression: "status != 'closed'", want: true},
		{name: "and", expression: "amount > 100 && status == 'active'", want: true},
		{name: "or short circuit", expression: "amount > 1000 || user.role == 'admin'", want: true},
		{name: "not", expression: "!(amount > 1000)", want: true},
		{name: "nested path", expression: "user.age >= 18", want: true},
		{name: "missing variable is nil", expression: "missing == null", want: true},
		{name: "ordering on mixed types is false", expression: "user > 5", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateBool(tt.expression, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateFunctions(t *testing.T) {
	vars := map[string]any{
		"name":  "weft",
		"items": []any{float64(1), float64(2), float64(3)},
		"score": 3.7,
	}

	tests := []struct {
		name       string
		expression string
		want       any
	}{
		{name: "round", expression: "round(score)", want: float64(4)},
		{name: "floor", expression: "floor(score)", want: float64(3)},
		{name: "abs", expression: "abs(0 - 5)", want: float64(5)},
		{name: "min max", expression: "min(3, 1, 2) + max(3, 1, 2)", want: float64(4)},
		{name: "len of list", expression: "len(items)", want: float64(3)},
		{name: "upper", expression: "upper(name)", want: "WEFT"},
		{name: "concat", expression: "concat(name, '-', 'engine')", want: "weft-engine"},
		{name: "contains list", expression: "contains(items, 2)", want: true},
		{name: "starts with", expression: "startsWith(name, 'we')", want: true},
		{name: "if", expression: "if(score > 3, 'high', 'low')", want: "high"},
		{name: "coalesce", expression: "coalesce(missing, name)", want: "weft"},
		{name: "number conversion", expression: "number('42') + 1", want: float64(43)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expression, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{name: "unknown function", expression: "system('rm')"},
		{name: "division by zero", expression: "1 / 0"},
		{name: "unterminated string", expression: "'abc"},
		{name: "dangling operator", expression: "1 +"},
		{name: "unbalanced parens", expression: "(1 + 2"},
		{name: "arithmetic on map", expression: "missing.path * 2"},
		{name: "dotted call", expression: "a.b()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.expression, map[string]any{})
			assert.Error(t, err)
		})
	}
}

func TestCompileReuse(t *testing.T) {
	program, err := Compile("total * 2")
	require.NoError(t, err)
	assert.Equal(t, "total * 2", program.Source())

	first, err := program.Run(map[string]any{"total": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, float64(10), first)

	second, err := program.Run(map[string]any{"total": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, float64(14), second)
}

func TestDepthLimit(t *testing.T) {
	deep := ""
	for range 200 {
		deep += "("
	}

	deep += "1"
	for range 200 {
		deep += ")"
	}

	_, err := Evaluate(deep, map[string]any{})
	assert.Error(t, err)
}

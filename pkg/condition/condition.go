// Package condition evaluates declarative field comparisons against an
// execution variable bag. It backs step gating, route matching and the
// field kind of branch decisions.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/weftlabs/weft/pkg/models"
)

// Supported comparison operators.
const (
	OpEquals       = "equals"
	OpNotEquals    = "not_equals"
	OpGreaterThan  = "greater_than"
	OpLessThan     = "less_than"
	OpGreaterEqual = "greater_equal"
	OpLessEqual    = "less_equal"
	OpContains     = "contains"
	OpNotContains  = "not_contains"
	OpStartsWith   = "starts_with"
	OpEndsWith     = "ends_with"
	OpIsNull       = "is_null"
	OpIsNotNull    = "is_not_null"
)

// Evaluate applies one condition to the variable bag. Unknown operators
// evaluate to false so a typo never silently passes a gate.
func Evaluate(cond *models.StepCondition, vars map[string]any) bool {
	if cond == nil {
		return true
	}

	actual := Resolve(cond.Field, vars)

	switch cond.Operator {
	case OpEquals:
		return looseEqual(actual, cond.Value)
	case OpNotEquals:
		return !looseEqual(actual, cond.Value)
	case OpGreaterThan:
		return ordered(actual, cond.Value, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b })
	case OpLessThan:
		return ordered(actual, cond.Value, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b })
	case OpGreaterEqual:
		return ordered(actual, cond.Value, func(a, b float64) bool { return a >= b }, func(a, b string) bool { return a >= b })
	case OpLessEqual:
		return ordered(actual, cond.Value, func(a, b float64) bool { return a <= b }, func(a, b string) bool { return a <= b })
	case OpContains:
		return contains(actual, cond.Value)
	case OpNotContains:
		return !contains(actual, cond.Value)
	case OpStartsWith:
		return strings.HasPrefix(asString(actual), asString(cond.Value))
	case OpEndsWith:
		return strings.HasSuffix(asString(actual), asString(cond.Value))
	case OpIsNull:
		return actual == nil
	case OpIsNotNull:
		return actual != nil
	default:
		return false
	}
}

// EvaluateAll applies a condition list as a conjunction. An empty list
// matches.
func EvaluateAll(conds []*models.StepCondition, vars map[string]any) bool {
	for _, cond := range conds {
		if !Evaluate(cond, vars) {
			return false
		}
	}

	return true
}

// Resolve walks a dotted field path through nested maps. Missing segments
// resolve to nil.
func Resolve(field string, vars map[string]any) any {
	if field == "" {
		return nil
	}

	var current any = vars

	for _, segment := range strings.Split(field, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = asMap[segment]
		if !ok {
			return nil
		}
	}

	return current
}

func looseEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	actualNum, actualOk := asNumber(actual)
	expectedNum, expectedOk := asNumber(expected)

	if actualOk && expectedOk {
		return actualNum == expectedNum
	}

	return asString(actual) == asString(expected)
}

func ordered(actual, expected any, numCmp func(a, b float64) bool, strCmp func(a, b string) bool) bool {
	actualNum, actualOk := asNumber(actual)
	expectedNum, expectedOk := asNumber(expected)

	if actualOk && expectedOk {
		return numCmp(actualNum, expectedNum)
	}

	actualStr, actualIsStr := actual.(string)
	expectedStr, expectedIsStr := expected.(string)

	if actualIsStr && expectedIsStr {
		return strCmp(actualStr, expectedStr)
	}

	return false
}

func contains(actual, expected any) bool {
	switch v := actual.(type) {
	case string:
		return strings.Contains(v, asString(expected))
	case []any:
		for _, item := range v {
			if looseEqual(item, expected) {
				return true
			}
		}

		return false
	case map[string]any:
		_, ok := v[asString(expected)]

		return ok
	default:
		return false
	}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errDivisionByZero = errors.New("division by zero")

type node interface {
	eval(vars map[string]any) (any, error)
}

type literalNode struct {
	value any
}

func (n *literalNode) eval(_ map[string]any) (any, error) {
	return n.value, nil
}

type varNode struct {
	path []string
}

func (n *varNode) eval(vars map[string]any) (any, error) {
	var current any = vars

	for _, segment := range n.path {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, nil
		}

		current, ok = asMap[segment]
		if !ok {
			return nil, nil
		}
	}

	return current, nil
}

type unaryNode struct {
	op      string
	operand node
}

func (n *unaryNode) eval(vars map[string]any) (any, error) {
	value, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "-":
		number, ok := toNumber(value)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", value)
		}

		return -number, nil
	case "!":
		return !Truthy(value), nil
	default:
		return nil, fmt.Errorf("unknown unary operator %q", n.op)
	}
}

type binaryNode struct {
	op    string
	left  node
	right node
}

func (n *binaryNode) eval(vars map[string]any) (any, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit.
	switch n.op {
	case "&&":
		if !Truthy(left) {
			return false, nil
		}

		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}

		return Truthy(right), nil
	case "||":
		if Truthy(left) {
			return true, nil
		}

		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}

		return Truthy(right), nil
	}

	right, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "+":
		return addValues(left, right)
	case "-", "*", "/", "%":
		return arithmetic(n.op, left, right)
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", ">", "<=", ">=":
		return ordered(n.op, left, right), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", n.op)
	}
}

type callNode struct {
	name string
	args []node
}

func (n *callNode) eval(vars map[string]any) (any, error) {
	fn, ok := functions[n.name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", n.name)
	}

	args := make([]any, len(n.args))

	for i, arg := range n.args {
		value, err := arg.eval(vars)
		if err != nil {
			return nil, err
		}

		args[i] = value
	}

	return fn(args)
}

func addValues(left, right any) (any, error) {
	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)

	if leftOk && rightOk {
		return leftNum + rightNum, nil
	}

	return toString(left) + toString(right), nil
}

func arithmetic(op string, left, right any) (any, error) {
	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)

	if !leftOk || !rightOk {
		return nil, fmt.Errorf("operator %q needs numeric operands, got %T and %T", op, left, right)
	}

	switch op {
	case "-":
		return leftNum - rightNum, nil
	case "*":
		return leftNum * rightNum, nil
	case "/":
		if rightNum == 0 {
			return nil, errDivisionByZero
		}

		return leftNum / rightNum, nil
	case "%":
		if rightNum == 0 {
			return nil, errDivisionByZero
		}

		return math.Mod(leftNum, rightNum), nil
	default:
		return nil, fmt.Errorf("unknown arithmetic operator %q", op)
	}
}

// looseEqual compares numerically when both sides coerce to numbers,
// otherwise by string form. Nil equals only nil.
func looseEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)

	if leftOk && rightOk {
		return leftNum == rightNum
	}

	return toString(left) == toString(right)
}

// ordered compares numerically when possible, lexicographically when both
// sides are strings, and yields false otherwise.
func ordered(op string, left, right any) bool {
	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)

	if leftOk && rightOk {
		switch op {
		case "<":
			return leftNum < rightNum
		case ">":
			return leftNum > rightNum
		case "<=":
			return leftNum <= rightNum
		case ">=":
			return leftNum >= rightNum
		}
	}

	leftStr, leftIsStr := left.(string)
	rightStr, rightIsStr := right.(string)

	if leftIsStr && rightIsStr {
		switch op {
		case "<":
			return leftStr < rightStr
		case ">":
			return leftStr > rightStr
		case "<=":
			return leftStr <= rightStr
		case ">=":
			return leftStr >= rightStr
		}
	}

	return false
}

// toNumber coerces numeric types and numeric strings to float64.
func toNumber(value any) (float64, bool) {
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
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

func toString(value any) string {
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

// Truthy reports whether a value counts as true: non-zero numbers,
// non-empty strings, true booleans, non-empty collections and any other
// non-nil value.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

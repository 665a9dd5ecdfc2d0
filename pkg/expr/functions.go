package expr

import (
	"fmt"
	"math"
	"strings"
)

// functions is the allow-list of callables available to expressions. There
// is deliberately no way to register new ones at runtime.
var functions = map[string]func(args []any) (any, error){
	"abs":        fnAbs,
	"min":        fnMin,
	"max":        fnMax,
	"round":      fnRound,
	"floor":      fnFloor,
	"ceil":       fnCeil,
	"len":        fnLen,
	"upper":      fnUpper,
	"lower":      fnLower,
	"concat":     fnConcat,
	"contains":   fnContains,
	"startsWith": fnStartsWith,
	"endsWith":   fnEndsWith,
	"if":         fnIf,
	"number":     fnNumber,
	"string":     fnString,
	"coalesce":   fnCoalesce,
}

func wantArgs(name string, args []any, count int) error {
	if len(args) != count {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, count, len(args))
	}

	return nil
}

func wantNumber(name string, value any) (float64, error) {
	number, ok := toNumber(value)
	if !ok {
		return 0, fmt.Errorf("%s expects a numeric argument, got %T", name, value)
	}

	return number, nil
}

func fnAbs(args []any) (any, error) {
	if err := wantArgs("abs", args, 1); err != nil {
		return nil, err
	}

	number, err := wantNumber("abs", args[0])
	if err != nil {
		return nil, err
	}

	return math.Abs(number), nil
}

func fnMin(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("min expects at least one argument")
	}

	best, err := wantNumber("min", args[0])
	if err != nil {
		return nil, err
	}

	for _, arg := range args[1:] {
		number, err := wantNumber("min", arg)
		if err != nil {
			return nil, err
		}

		best = math.Min(best, number)
	}

	return best, nil
}

func fnMax(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("max expects at least one argument")
	}

	best, err := wantNumber("max", args[0])
	if err != nil {
		return nil, err
	}

	for _, arg := range args[1:] {
		number, err := wantNumber("max", arg)
		if err != nil {
			return nil, err
		}

		best = math.Max(best, number)
	}

	return best, nil
}

func fnRound(args []any) (any, error) {
	if err := wantArgs("round", args, 1); err != nil {
		return nil, err
	}

	number, err := wantNumber("round", args[0])
	if err != nil {
		return nil, err
	}

	return math.Round(number), nil
}

func fnFloor(args []any) (any, error) {
	if err := wantArgs("floor", args, 1); err != nil {
		return nil, err
	}

	number, err := wantNumber("floor", args[0])
	if err != nil {
		return nil, err
	}

	return math.Floor(number), nil
}

func fnCeil(args []any) (any, error) {
	if err := wantArgs("ceil", args, 1); err != nil {
		return nil, err
	}

	number, err := wantNumber("ceil", args[0])
	if err != nil {
		return nil, err
	}

	return math.Ceil(number), nil
}

func fnLen(args []any) (any, error) {
	if err := wantArgs("len", args, 1); err != nil {
		return nil, err
	}

	switch v := args[0].(type) {
	case nil:
		return float64(0), nil
	case string:
		return float64(len(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	default:
		return nil, fmt.Errorf("len expects a string, list or map, got %T", args[0])
	}
}

func fnUpper(args []any) (any, error) {
	if err := wantArgs("upper", args, 1); err != nil {
		return nil, err
	}

	return strings.ToUpper(toString(args[0])), nil
}

func fnLower(args []any) (any, error) {
	if err := wantArgs("lower", args, 1); err != nil {
		return nil, err
	}

	return strings.ToLower(toString(args[0])), nil
}

func fnConcat(args []any) (any, error) {
	var sb strings.Builder

	for _, arg := range args {
		sb.WriteString(toString(arg))
	}

	return sb.String(), nil
}

func fnContains(args []any) (any, error) {
	if err := wantArgs("contains", args, 2); err != nil {
		return nil, err
	}

	switch haystack := args[0].(type) {
	case string:
		return strings.Contains(haystack, toString(args[1])), nil
	case []any:
		for _, item := range haystack {
			if looseEqual(item, args[1]) {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, nil
	}
}

func fnStartsWith(args []any) (any, error) {
	if err := wantArgs("startsWith", args, 2); err != nil {
		return nil, err
	}

	return strings.HasPrefix(toString(args[0]), toString(args[1])), nil
}

func fnEndsWith(args []any) (any, error) {
	if err := wantArgs("endsWith", args, 2); err != nil {
		return nil, err
	}

	return strings.HasSuffix(toString(args[0]), toString(args[1])), nil
}

func fnIf(args []any) (any, error) {
	if err := wantArgs("if", args, 3); err != nil {
		return nil, err
	}

	if Truthy(args[0]) {
		return args[1], nil
	}

	return args[2], nil
}

func fnNumber(args []any) (any, error) {
	if err := wantArgs("number", args, 1); err != nil {
		return nil, err
	}

	number, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to number", args[0])
	}

	return number, nil
}

func fnString(args []any) (any, error) {
	if err := wantArgs("string", args, 1); err != nil {
		return nil, err
	}

	return toString(args[0]), nil
}

func fnCoalesce(args []any) (any, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}

	return nil, nil
}

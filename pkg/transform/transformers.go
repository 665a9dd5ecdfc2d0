package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weftlabs/weft/pkg/expr"
)

// MapFields copies values from source paths to target paths, producing a
// fresh document. Config: {"mappings": {"target.path": "source.path"}}.
// Missing sources map to nil so downstream steps see the field exists.
func MapFields(data map[string]any, cfg map[string]any) (map[string]any, error) {
	mappings, ok := cfg["mappings"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("map_fields requires a mappings object")
	}

	out := make(map[string]any)

	for target, source := range mappings {
		sourcePath, ok := source.(string)
		if !ok {
			return nil, fmt.Errorf("map_fields mapping for %q must be a source path string", target)
		}

		value, _ := Get(data, sourcePath)
		Set(out, target, value)
	}

	return out, nil
}

// FilterFields keeps only the listed field paths.
// Config: {"fields": ["a", "b.c"]}.
func FilterFields(data map[string]any, cfg map[string]any) (map[string]any, error) {
	rawFields, ok := cfg["fields"].([]any)
	if !ok {
		return nil, fmt.Errorf("filter_fields requires a fields list")
	}

	out := make(map[string]any)

	for _, raw := range rawFields {
		path, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("filter_fields entries must be strings, got %T", raw)
		}

		value, exists := Get(data, path)
		if exists {
			Set(out, path, value)
		}
	}

	return out, nil
}

// Aggregate computes count, sum, avg, min or max over list fields. Null and
// non-numeric elements are skipped; an empty or all-null list yields 0. The
// result lands under "<field>_<op>".
// Config: {"operations": [{"field": "scores", "op": "avg"}]}.
func Aggregate(data map[string]any, cfg map[string]any) (map[string]any, error) {
	operations, ok := cfg["operations"].([]any)
	if !ok {
		return nil, fmt.Errorf("aggregate requires an operations list")
	}

	out := copyDocument(data)

	for _, raw := range operations {
		operation, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("aggregate operations must be objects, got %T", raw)
		}

		field, _ := operation["field"].(string)

		op, _ := operation["op"].(string)
		if op == "" {
			op, _ = operation["type"].(string)
		}

		if field == "" || op == "" {
			return nil, fmt.Errorf("aggregate operation needs field and op")
		}

		value, _ := Get(data, field)
		numbers := numericElements(value)

		result, err := aggregateNumbers(op, numbers)
		if err != nil {
			return nil, err
		}

		Set(out, field+"_"+op, result)
	}

	return out, nil
}

// Calculate evaluates restricted expressions per target field on top of the
// input document. A failing expression yields nil for its field rather than
// failing the transform.
// Config: {"calculations": {"total": "price * quantity"}}.
func Calculate(data map[string]any, cfg map[string]any) (map[string]any, error) {
	calculations, ok := cfg["calculations"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("calculate requires a calculations object")
	}

	out := copyDocument(data)

	for target, raw := range calculations {
		expression, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("calculate expression for %q must be a string", target)
		}

		value, err := expr.Evaluate(expression, data)
		if err != nil {
			Set(out, target, nil)

			continue
		}

		Set(out, target, value)
	}

	return out, nil
}

// Format rewrites named fields: uppercase, lowercase, number, date_iso, or
// a template containing the {value} placeholder.
// Config: {"formats": {"name": "uppercase", "greeting": "Hello {value}"}}.
func Format(data map[string]any, cfg map[string]any) (map[string]any, error) {
	formats, ok := cfg["formats"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("format requires a formats object")
	}

	out := copyDocument(data)

	for field, raw := range formats {
		spec, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("format spec for %q must be a string", field)
		}

		value, exists := Get(data, field)
		if !exists {
			continue
		}

		Set(out, field, formatValue(value, spec))
	}

	return out, nil
}

// Lookup maps a field through a static table.
// Config: {"field": "code", "table": {"US": "United States"}, "target":
// "label", "default": any}. Target defaults to "<field>_lookup"; a miss
// without a default keeps the original value.
func Lookup(data map[string]any, cfg map[string]any) (map[string]any, error) {
	field, _ := cfg["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("lookup requires a field")
	}

	table, ok := cfg["table"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("lookup requires a table object")
	}

	target, _ := cfg["target"].(string)
	if target == "" {
		target = field + "_lookup"
	}

	out := copyDocument(data)

	value, _ := Get(data, field)

	mapped, found := table[stringify(value)]
	if !found {
		if fallback, hasDefault := cfg["default"]; hasDefault {
			mapped = fallback
		} else {
			mapped = value
		}
	}

	Set(out, target, mapped)

	return out, nil
}

// Custom builds a document from scratch, one restricted expression per
// output field.
// Config: {"expressions": {"label": "concat(first, ' ', last)"}}.
func Custom(data map[string]any, cfg map[string]any) (map[string]any, error) {
	expressions, ok := cfg["expressions"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("custom requires an expressions object")
	}

	out := make(map[string]any)

	for target, raw := range expressions {
		expression, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("custom expression for %q must be a string", target)
		}

		value, err := expr.Evaluate(expression, data)
		if err != nil {
			return nil, fmt.Errorf("custom expression for %q: %w", target, err)
		}

		Set(out, target, value)
	}

	return out, nil
}

func copyDocument(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}

	return out
}

func numericElements(value any) []float64 {
	list, ok := value.([]any)
	if !ok {
		return nil
	}

	numbers := make([]float64, 0, len(list))

	for _, item := range list {
		if number, ok := toFloat(item); ok {
			numbers = append(numbers, number)
		}
	}

	return numbers
}

func aggregateNumbers(op string, numbers []float64) (float64, error) {
	if op == "count" {
		return float64(len(numbers)), nil
	}

	if len(numbers) == 0 {
		return 0, nil
	}

	switch op {
	case "sum", "avg":
		var sum float64
		for _, n := range numbers {
			sum += n
		}

		if op == "avg" {
			return sum / float64(len(numbers)), nil
		}

		return sum, nil
	case "min":
		best := numbers[0]
		for _, n := range numbers[1:] {
			if n < best {
				best = n
			}
		}

		return best, nil
	case "max":
		best := numbers[0]
		for _, n := range numbers[1:] {
			if n > best {
				best = n
			}
		}

		return best, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate op %q", op)
	}
}

func formatValue(value any, spec string) any {
	switch spec {
	case "uppercase":
		return strings.ToUpper(stringify(value))
	case "lowercase":
		return strings.ToLower(stringify(value))
	case "number":
		if number, ok := toFloat(value); ok {
			return number
		}

		return value
	case "date_iso":
		return formatDateISO(value)
	default:
		if strings.Contains(spec, "{value}") {
			return strings.ReplaceAll(spec, "{value}", stringify(value))
		}

		return value
	}
}

func formatDateISO(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case float64:
		// Numeric timestamps are unix milliseconds.
		return time.UnixMilli(int64(v)).UTC().Format(time.RFC3339)
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.UTC().Format(time.RFC3339)
			}
		}

		return v
	default:
		return value
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
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

func stringify(value any) string {
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

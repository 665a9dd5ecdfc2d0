package transform

import "strings"

// Get walks a dotted path through nested maps. The second return reports
// whether the full path existed.
func Get(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Set writes a value at a dotted path, creating intermediate maps as
// needed. Non-map intermediates are replaced.
func Set(data map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := data

	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}

		current = next
	}

	current[segments[len(segments)-1]] = value
}

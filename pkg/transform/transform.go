// Package transform provides the named data transformers applied by
// data_transform steps. Each transformer is a pure function from an input
// document and a configuration to an output document.
package transform

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTransformer indicates a data_transform step referenced a
// transformer that is not registered.
var ErrUnknownTransformer = errors.New("unknown transformer")

// Func is a pure transformation over a document.
type Func func(data map[string]any, cfg map[string]any) (map[string]any, error)

var transformers = map[string]Func{
	"map_fields":    MapFields,
	"filter_fields": FilterFields,
	"aggregate":     Aggregate,
	"calculate":     Calculate,
	"format":        Format,
	"lookup":        Lookup,
	"custom":        Custom,
}

// Apply runs the named transformer.
func Apply(name string, data, cfg map[string]any) (map[string]any, error) {
	fn, ok := transformers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransformer, name)
	}

	return fn(data, cfg)
}

// Names lists the registered transformers, sorted.
func Names() []string {
	names := make([]string, 0, len(transformers))
	for name := range transformers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

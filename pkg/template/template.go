// Package template provides dot-path resolution of execution context data
// for dynamic node configuration.
package template

import (
	"fmt"
	"strings"
)

// Lookup resolves a dot-separated path ("record.email", "nodes.step1.status")
// against nested maps. The second return reports whether the full path
// resolved.
func Lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")

	var current any = data

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// NeedsResolution checks whether a string references a context namespace.
func NeedsResolution(input string) bool {
	return strings.HasPrefix(input, "record.") ||
		strings.HasPrefix(input, "trigger.") ||
		strings.HasPrefix(input, "variables.") ||
		strings.HasPrefix(input, "nodes.")
}

// ResolveValue resolves a single configuration value. Strings that
// reference a context namespace are looked up (unresolvable paths become
// nil); everything else passes through unchanged.
func ResolveValue(value any, data map[string]any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}

	if !NeedsResolution(str) {
		return str
	}

	resolved, found := Lookup(data, str)
	if !found {
		return nil
	}

	return resolved
}

// ResolveMap resolves every value of a configuration map, recursing into
// nested maps. The input map is not modified.
func ResolveMap(input map[string]any, data map[string]any) map[string]any {
	resolved := make(map[string]any, len(input))

	for key, value := range input {
		switch v := value.(type) {
		case map[string]any:
			resolved[key] = ResolveMap(v, data)
		default:
			resolved[key] = ResolveValue(v, data)
		}
	}

	return resolved
}

// Stringify renders a resolved value for comparison and logging.
func Stringify(value any) string {
	if value == nil {
		return ""
	}

	return fmt.Sprintf("%v", value)
}

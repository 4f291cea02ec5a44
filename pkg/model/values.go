package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path inside a nested value tree. Numeric segments
// index into lists.
func Lookup(values map[string]any, path string) (any, bool) {
	if values == nil || strings.TrimSpace(path) == "" {
		return nil, false
	}
	return LookupSegments(values, strings.Split(path, "."))
}

// LookupSegments is Lookup over a pre-split path.
func LookupSegments(values map[string]any, segments []string) (any, bool) {
	var current any = values
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// ToNumber coerces numeric values and numeric strings.
func ToNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		raw := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if raw == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsEmpty reports whether value counts as unanswered: nil, blank strings,
// empty lists and maps, and file references without a name.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case FileRef:
		return strings.TrimSpace(v.Name) == ""
	case *FileRef:
		return v == nil || strings.TrimSpace(v.Name) == ""
	default:
		return false
	}
}

// Truthy mirrors checkbox semantics: true booleans, "true"/"yes"/"on"
// strings, non-zero numbers and non-empty lists.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			return true
		}
		return false
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	if n, ok := ToNumber(value); ok {
		return n != 0
	}
	return false
}

// TemplatePath maps a concrete group item path ("vehicles.3.vin") to its
// template ("vehicles.*.vin"). Other paths are returned unchanged.
func (f Form) TemplatePath(path string) string {
	segments := strings.Split(path, ".")
	if len(segments) < 3 {
		return path
	}
	if _, ok := f.Group(segments[0]); !ok {
		return path
	}
	if _, err := strconv.Atoi(segments[1]); err != nil {
		return path
	}
	segments[1] = "*"
	return strings.Join(segments, ".")
}

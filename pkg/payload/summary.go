package payload

import (
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

func summarize(summary model.Summary, values map[string]any) any {
	switch summary.Kind {
	case model.SummaryCount:
		return count(lookupSource(values, summary.Source))
	case model.SummaryCountTruthy:
		return countTruthy(lookupSource(values, summary.Source))
	case model.SummarySum:
		return sum(lookupSource(values, summary.Source))
	default:
		return nil
	}
}

// lookupSource resolves a summary source. "group.*.field" collects the
// field across every item of the group.
func lookupSource(values map[string]any, source string) any {
	group, rest, ok := strings.Cut(source, ".*.")
	if !ok {
		v, _ := model.Lookup(values, source)
		return v
	}
	raw, _ := model.Lookup(values, group)
	items, _ := raw.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := model.Lookup(record, rest); ok {
			out = append(out, v)
		}
	}
	return out
}

func count(value any) int {
	switch v := value.(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return 0
	}
}

func countTruthy(value any) int {
	n := 0
	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			if model.Truthy(child) {
				n++
			}
		}
	case []any:
		for _, child := range v {
			if model.Truthy(child) {
				n++
			}
		}
	case []string:
		for _, child := range v {
			if model.Truthy(child) {
				n++
			}
		}
	}
	return n
}

func sum(value any) float64 {
	var total float64
	add := func(v any) {
		if n, ok := model.ToNumber(v); ok {
			total += n
		}
	}
	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			add(child)
		}
	case []any:
		for _, child := range v {
			add(child)
		}
	default:
		add(v)
	}
	return total
}

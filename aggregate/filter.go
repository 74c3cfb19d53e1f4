package aggregate

import (
	"fmt"
	"strings"
)

// Filter returns the items matching text and every field filter, in input
// order. An empty text and no field filters return a copy of items.
func Filter[T Fielder](items []T, text string, fields map[string]any, searchFields []string) []T {
	needle := Normalize(strings.TrimSpace(text))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !matchesFields(item, fields) {
			continue
		}
		if needle != "" && !strings.Contains(Normalize(haystack(item, searchFields)), needle) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesFields[T Fielder](item T, fields map[string]any) bool {
	for name, want := range fields {
		if !equalValues(item.Field(name), want) {
			return false
		}
	}
	return true
}

func haystack[T Fielder](item T, searchFields []string) string {
	if len(searchFields) == 0 {
		if s, ok := any(item).(Searcher); ok {
			return s.SearchText()
		}
		return ""
	}

	var b strings.Builder
	for _, name := range searchFields {
		k, v := classify(item.Field(name))
		if k == kindNull {
			continue
		}
		fmt.Fprint(&b, v)
		b.WriteByte('\n')
	}
	return b.String()
}

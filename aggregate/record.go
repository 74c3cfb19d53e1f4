package aggregate

import (
	"fmt"
	"slices"
	"strings"
)

// Record adapts a decoded JSON object to Fielder.
type Record map[string]any

// Field returns the value stored under name. Dotted names walk nested objects.
func (r Record) Field(name string) any {
	if v, ok := r[name]; ok {
		return v
	}
	head, rest, ok := strings.Cut(name, ".")
	if !ok {
		return nil
	}
	switch nested := r[head].(type) {
	case map[string]any:
		return Record(nested).Field(rest)
	case Record:
		return nested.Field(rest)
	}
	return nil
}

// SearchText joins every string and number value, in key order.
func (r Record) SearchText() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			b.WriteString(v)
		case float64, int, int64:
			fmt.Fprint(&b, v)
		default:
			continue
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var (
	_ Fielder  = Record(nil)
	_ Searcher = Record(nil)
)

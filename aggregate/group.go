package aggregate

import (
	"time"
	"unicode"
	"unicode/utf8"
)

// Group partitions already-ordered items into contiguous sections by key.
// A key that reappears after a different one starts a new section; items
// are never reordered.
func Group[T any](items []T, key func(T) string) []Section[T] {
	var sections []Section[T]
	for _, item := range items {
		k := key(item)
		if n := len(sections); n > 0 && sections[n-1].Title == k {
			sections[n-1].Items = append(sections[n-1].Items, item)
			continue
		}
		sections = append(sections, Section[T]{Title: k, Items: []T{item}})
	}
	return sections
}

// Apply filters, sorts and groups items per spec. A nil key yields a single
// untitled section holding every remaining item.
func Apply[T Fielder](items []T, spec Spec, key func(T) string) []Section[T] {
	filtered := Filter(items, spec.FilterText, spec.FieldFilters, spec.SearchFields)
	sorted := sortWith(filtered, spec.SortBy, spec.OrderBy, spec.tag())
	if key == nil {
		return []Section[T]{{Items: sorted}}
	}
	return Group(sorted, key)
}

// FirstLetter groups by the upper-cased first letter of a string field, with
// diacritics removed. Values that do not start with a letter group under "#".
func FirstLetter[T Fielder](field string) func(T) string {
	return func(item T) string {
		s, _ := item.Field(field).(string)
		r, _ := utf8.DecodeRuneInString(Normalize(s))
		if r == utf8.RuneError || !unicode.IsLetter(r) {
			return "#"
		}
		return string(unicode.ToUpper(r))
	}
}

// Day groups by the calendar day of a time field in loc, formatted as
// 2006-01-02. RFC 3339 strings are parsed. Items without a date group under "".
func Day[T Fielder](field string, loc *time.Location) func(T) string {
	if loc == nil {
		loc = time.UTC
	}
	return func(item T) string {
		var t time.Time
		switch v := item.Field(field).(type) {
		case time.Time:
			t = v
		case *time.Time:
			if v != nil {
				t = *v
			}
		case string:
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return ""
			}
			t = parsed
		}
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format(time.DateOnly)
	}
}

package aggregate

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// ErrInvalidOrder is returned by Spec.Validate for an unknown direction.
var ErrInvalidOrder = errors.New("aggregate: order must be asc or desc")

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Spec is the sort and filter request for one list.
type Spec struct {
	// SortBy is the field to sort on. Empty keeps input order.
	SortBy string `json:"sortBy,omitempty"`

	// OrderBy is the sort direction. Empty means ascending.
	OrderBy Order `json:"orderBy,omitempty"`

	// FilterText is matched as a substring, ignoring case and diacritics.
	FilterText string `json:"filterText,omitempty"`

	// FieldFilters are exact-match predicates, all of which must hold.
	FieldFilters map[string]any `json:"fieldFilters,omitempty"`

	// SearchFields limits FilterText to these fields. Empty searches the
	// item's SearchText when it implements Searcher.
	SearchFields []string `json:"searchFields,omitempty"`

	// Locale selects string collation, e.g. "fr". Empty uses the root order.
	Locale string `json:"locale,omitempty"`
}

// Validate checks the direction and locale.
func (s Spec) Validate() error {
	if s.OrderBy != "" && s.OrderBy != Asc && s.OrderBy != Desc {
		return fmt.Errorf("%w: %q", ErrInvalidOrder, s.OrderBy)
	}
	if s.Locale != "" {
		if _, err := language.Parse(s.Locale); err != nil {
			return fmt.Errorf("aggregate: invalid locale %q: %w", s.Locale, err)
		}
	}
	return nil
}

func (s Spec) tag() language.Tag {
	if s.Locale == "" {
		return language.Und
	}
	tag, err := language.Parse(s.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// Fielder exposes named fields to the aggregator.
type Fielder interface {
	// Field returns the value of name, or nil when absent.
	Field(name string) any
}

// Searcher is implemented by items that provide their own free-text haystack.
type Searcher interface {
	SearchText() string
}

// Section is one titled group of a sectioned list.
type Section[T any] struct {
	Title string
	Items []T
}

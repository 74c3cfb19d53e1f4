package aggregate

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort returns a stably sorted copy of items. Null values sort last in both
// directions; equal values keep their input order.
func Sort[T Fielder](items []T, sortBy string, order Order) []T {
	return sortWith(items, sortBy, order, language.Und)
}

func sortWith[T Fielder](items []T, sortBy string, order Order, locale language.Tag) []T {
	out := slices.Clone(items)
	if sortBy == "" || len(out) < 2 {
		return out
	}

	type keyed struct {
		item T
		kind kind
		val  any
	}
	rows := make([]keyed, len(out))
	for i, item := range out {
		k, v := classify(item.Field(sortBy))
		rows[i] = keyed{item: item, kind: k, val: v}
	}

	c := &comparer{collator: collate.New(locale)}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		switch {
		case a.kind == kindNull && b.kind == kindNull:
			return 0
		case a.kind == kindNull:
			return 1
		case b.kind == kindNull:
			return -1
		}
		r := c.compare(a.kind, a.val, b.kind, b.val)
		if order == Desc {
			return -r
		}
		return r
	})

	for i := range rows {
		out[i] = rows[i].item
	}
	return out
}

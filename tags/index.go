package tags

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

type keySet map[string]struct{}

// Index maps tags to the query keys that provide them.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Consistency: a key appears in the reverse mapping only while it has a
//   non-empty provided set; removing a key leaves no references behind.
type Index struct {
	mu       sync.RWMutex
	provided map[string]map[Tag]struct{}
	byTag    map[Tag]keySet
	// byType counts, per resource type, how many tags of that type each key provides.
	byType map[string]map[string]int
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		provided: make(map[string]map[Tag]struct{}),
		byTag:    make(map[Tag]keySet),
		byType:   make(map[string]map[string]int),
	}
}

// SetProvidedTags replaces the tags key contributes to the index.
// Only the difference against the previous set is applied.
// An empty tags list removes the key.
func (x *Index) SetProvidedTags(key string, tags []Tag) error {
	if key == "" {
		return ErrEmptyKey
	}
	next := make(map[Tag]struct{}, len(tags))
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return err
		}
		next[t] = struct{}{}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	prev := x.provided[key]
	for t := range prev {
		if _, keep := next[t]; !keep {
			x.unlink(key, t)
		}
	}
	for t := range next {
		if _, had := prev[t]; !had {
			x.link(key, t)
		}
	}

	if len(next) == 0 {
		delete(x.provided, key)
	} else {
		x.provided[key] = next
	}
	return nil
}

func (x *Index) link(key string, t Tag) {
	keys, ok := x.byTag[t]
	if !ok {
		keys = make(keySet)
		x.byTag[t] = keys
	}
	keys[key] = struct{}{}

	counts, ok := x.byType[t.Type]
	if !ok {
		counts = make(map[string]int)
		x.byType[t.Type] = counts
	}
	counts[key]++
}

func (x *Index) unlink(key string, t Tag) {
	if keys, ok := x.byTag[t]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(x.byTag, t)
		}
	}
	if counts, ok := x.byType[t.Type]; ok {
		counts[key]--
		if counts[key] <= 0 {
			delete(counts, key)
		}
		if len(counts) == 0 {
			delete(x.byType, t.Type)
		}
	}
}

// Remove drops every tag key provides.
func (x *Index) Remove(key string) {
	_ = x.SetProvidedTags(key, nil)
}

// KeysForTags returns the sorted union of keys depending on any of tags.
// A LIST tag matches every key that provides any tag of its type; any other
// tag matches exactly. Tags with no providers contribute nothing.
func (x *Index) KeysForTags(tags ...Tag) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	union := make(keySet)
	for _, t := range tags {
		if t.IsList() {
			for key := range x.byType[t.Type] {
				union[key] = struct{}{}
			}
			continue
		}
		for key := range x.byTag[t] {
			union[key] = struct{}{}
		}
	}
	return sortedKeys(union)
}

// TagsFor returns the tags key currently provides, sorted by their string form.
func (x *Index) TagsFor(key string) []Tag {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Tag, 0, len(x.provided[key]))
	for t := range x.provided[key] {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tag) int {
		return cmp.Or(strings.Compare(a.Type, b.Type), strings.Compare(a.ID, b.ID))
	})
	return out
}

// Keys returns every key referenced by the reverse mapping, sorted.
func (x *Index) Keys() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	set := make(keySet)
	for _, keys := range x.byTag {
		for key := range keys {
			set[key] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Len returns the number of keys with at least one provided tag.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.provided)
}

// Reset empties the index.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.provided = make(map[string]map[Tag]struct{})
	x.byTag = make(map[Tag]keySet)
	x.byType = make(map[string]map[string]int)
}

func sortedKeys(set keySet) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

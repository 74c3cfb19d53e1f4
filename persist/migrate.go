package persist

import (
	"encoding/json"
	"fmt"
)

// Migration upgrades the slices of a snapshot from version N to N+1. It
// receives a private copy and may modify it in place.
type Migration func(slices map[string]json.RawMessage) (map[string]json.RawMessage, error)

// Migrations maps a source version N to the step producing version N+1.
type Migrations map[int]Migration

// Run applies every step from version from up to version to, in order.
func (m Migrations) Run(slices map[string]json.RawMessage, from, to int) (map[string]json.RawMessage, error) {
	if from > to {
		return nil, fmt.Errorf("%w: snapshot v%d, schema v%d", ErrFutureVersion, from, to)
	}
	out := cloneSlices(slices)
	for v := from; v < to; v++ {
		step, ok := m[v]
		if !ok {
			return nil, fmt.Errorf("%w: v%d to v%d", ErrMissingMigration, v, v+1)
		}
		next, err := runStep(step, out)
		if err != nil {
			return nil, fmt.Errorf("%w: v%d to v%d: %w", ErrMigrationFailed, v, v+1, err)
		}
		if next == nil {
			next = map[string]json.RawMessage{}
		}
		out = next
	}
	return out, nil
}

// runStep calls step and turns a panic into an error.
func runStep(step Migration, slices map[string]json.RawMessage) (next map[string]json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return step(slices)
}

// EditObject decodes the named slice as a JSON object, passes it to fn and
// stores the result. A missing slice is left alone.
func EditObject(slices map[string]json.RawMessage, name string, fn func(obj map[string]any) error) error {
	raw, ok := slices[name]
	if !ok {
		return nil
	}
	var obj map[string]any
	if err := decodeNumbers(raw, &obj); err != nil {
		return fmt.Errorf("slice %q: %w", name, err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	if err := fn(obj); err != nil {
		return fmt.Errorf("slice %q: %w", name, err)
	}
	encoded, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("slice %q: %w", name, err)
	}
	slices[name] = encoded
	return nil
}

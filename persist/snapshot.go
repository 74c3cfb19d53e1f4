package persist

import (
	"bytes"
	"context"
	"encoding/json"
)

// Snapshot is the persisted form of application state.
type Snapshot struct {
	SchemaVersion int                        `json:"schemaVersion"`
	Slices        map[string]json.RawMessage `json:"slices"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{SchemaVersion: s.SchemaVersion, Slices: cloneSlices(s.Slices)}
}

func cloneSlices(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for name, raw := range in {
		out[name] = append(json.RawMessage(nil), raw...)
	}
	return out
}

// Backend stores one snapshot.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Load returns ErrNotFound when nothing has been saved.
// - Save replaces the whole snapshot; slices absent from it are removed.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context) error
}

func filterSlices(in map[string]json.RawMessage, allowed map[string]struct{}) (kept map[string]json.RawMessage, dropped []string) {
	kept = make(map[string]json.RawMessage, len(in))
	for name, raw := range in {
		if _, ok := allowed[name]; !ok {
			dropped = append(dropped, name)
			continue
		}
		kept[name] = raw
	}
	return kept, dropped
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

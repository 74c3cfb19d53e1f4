package persist

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/salesync/aggregate"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func raw(v string) json.RawMessage {
	return json.RawMessage(v)
}

func v1Snapshot() Snapshot {
	return Snapshot{
		SchemaVersion: 1,
		Slices: map[string]json.RawMessage{
			SliceSession:         raw(`{"token":"abc","user":"ana","password":"hunter2"}`),
			SliceCustomerPrefs:   raw(`{"sort":"name","filterText":"dupont"}`),
			SliceContractPrefs:   raw(`{"sortBy":"signedAt","orderBy":"desc"}`),
			SliceDeliveryPrefs:   raw(`{"sortBy":"deliveryDate"}`),
			SliceDashboardLayout: raw(`["counters","leads"]`),
			"ui-drawer-open":     raw(`true`),
		},
	}
}

func aggregateBase() aggregate.Spec {
	return aggregate.Spec{SortBy: "createdAt", SearchFields: []string{"name", "email"}}
}

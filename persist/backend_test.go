package persist

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the Backend contract against b.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first := Snapshot{SchemaVersion: 3, Slices: map[string]json.RawMessage{
		SliceSession:       raw(`{"token":"abc"}`),
		SliceCustomerPrefs: raw(`{"sortBy":"name"}`),
	}}
	require.NoError(t, b.Save(ctx, first))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SchemaVersion)
	require.Len(t, got.Slices, 2)
	assert.JSONEq(t, `{"token":"abc"}`, string(got.Slices[SliceSession]))

	second := Snapshot{SchemaVersion: 6, Slices: map[string]json.RawMessage{
		SliceCustomerPrefs: raw(`{"sortBy":"city"}`),
	}}
	require.NoError(t, b.Save(ctx, second))

	got, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, got.SchemaVersion)
	assert.Equal(t, []string{SliceCustomerPrefs}, keys(got.Slices), "save replaces the whole snapshot")

	require.NoError(t, b.Save(ctx, Snapshot{SchemaVersion: 6}))
	got, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Slices)

	require.NoError(t, b.Clear(ctx))
	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	b, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	exerciseBackend(t, b)
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	b, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	s, err := NewStore(b)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, map[string]any{SliceDashboardLayout: []DashboardWidget{{ID: "leads", Visible: false}}}))
	require.NoError(t, b.Close())

	b, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	s, err = NewStore(b)
	require.NoError(t, err)

	res, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestored, res.Outcome)
	var layout []DashboardWidget
	_, err = res.Decode(SliceDashboardLayout, &layout)
	require.NoError(t, err)
	assert.Equal(t, []DashboardWidget{{ID: "leads", Visible: false}}, layout)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ")
	assert.Error(t, err)
}

func TestValkeyBackend(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer server.Close()

	b, err := DialValkey(context.Background(), ValkeyConfig{Address: server.Addr(), Prefix: "test"})
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}

func TestValkeyBackend_KeyLayout(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer server.Close()

	b, err := DialValkey(context.Background(), ValkeyConfig{Address: server.Addr()})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Save(context.Background(), Snapshot{SchemaVersion: 6, Slices: map[string]json.RawMessage{
		SliceSession: raw(`{"token":"abc"}`),
	}}))

	version, err := server.Get("salesync:schemaVersion")
	require.NoError(t, err)
	assert.Equal(t, "6", version)
	assert.Equal(t, `{"token":"abc"}`, server.HGet("salesync:slices", SliceSession))
}

func TestDialValkey_RequiresAddress(t *testing.T) {
	_, err := DialValkey(context.Background(), ValkeyConfig{})
	assert.Error(t, err)
}

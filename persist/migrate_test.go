package persist

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_RunInOrder(t *testing.T) {
	var applied []int
	step := func(v int) Migration {
		return func(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
			applied = append(applied, v)
			s["last"] = raw(`"` + string(rune('0'+v+1)) + `"`)
			return s, nil
		}
	}
	chain := Migrations{1: step(1), 2: step(2), 3: step(3), 4: step(4), 5: step(5)}

	out, err := chain.Run(map[string]json.RawMessage{}, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, applied)
	assert.JSONEq(t, `"6"`, string(out["last"]))

	applied = nil
	_, err = chain.Run(map[string]json.RawMessage{}, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, applied, "a snapshot starts from its own version")
}

func TestMigrations_NoSkipping(t *testing.T) {
	chain := Migrations{1: renameCustomerSort, 3: addTestDrivePrefs}
	_, err := chain.Run(map[string]json.RawMessage{}, 1, 4)
	assert.ErrorIs(t, err, ErrMissingMigration)
}

func TestMigrations_Errors(t *testing.T) {
	boom := errors.New("boom")
	chain := Migrations{1: func(map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		return nil, boom
	}}

	_, err := chain.Run(map[string]json.RawMessage{}, 1, 2)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.ErrorIs(t, err, boom)

	_, err = chain.Run(map[string]json.RawMessage{}, 3, 2)
	assert.ErrorIs(t, err, ErrFutureVersion)
}

func TestMigrations_PanickingStepFails(t *testing.T) {
	chain := Migrations{1: func(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		var layout any = string(s[SliceDashboardLayout])
		_ = layout.([]any)
		return s, nil
	}}

	var out map[string]json.RawMessage
	var err error
	require.NotPanics(t, func() {
		out, err = chain.Run(map[string]json.RawMessage{SliceDashboardLayout: raw(`[]`)}, 1, 2)
	})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.Contains(t, err.Error(), "panic")
}

func TestMigrations_InputUntouched(t *testing.T) {
	in := map[string]json.RawMessage{SliceSession: raw(`{"password":"x"}`)}
	_, err := Migrations{4: dropSessionPassword}.Run(in, 4, 5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"x"}`, string(in[SliceSession]))
}

func TestAppMigrations_V1ToCurrent(t *testing.T) {
	snap := v1Snapshot()
	got, err := AppMigrations().Run(snap.Slices, snap.SchemaVersion, CurrentSchemaVersion)
	require.NoError(t, err)

	want := AppDefaults()
	want[SliceSession] = raw(`{"token":"abc","user":"ana"}`)
	want[SliceCustomerPrefs] = raw(`{"sortBy":"name","orderBy":"asc","filterText":"dupont"}`)
	want[SliceDashboardLayout] = raw(`[{"id":"counters","visible":true},{"id":"leads","visible":true}]`)

	kept, dropped := filterSlices(got, map[string]struct{}{
		SliceSession: {}, SliceContractPrefs: {}, SliceCustomerPrefs: {},
		SliceDashboardLayout: {}, SliceDeliveryPrefs: {}, SliceTestDrivePrefs: {},
	})
	assert.Equal(t, []string{"ui-drawer-open"}, dropped)
	require.Len(t, kept, len(want))
	for name, w := range want {
		assert.JSONEq(t, string(w), string(kept[name]), name)
	}
}

func TestAppMigrations_TotalOverSparseInput(t *testing.T) {
	got, err := AppMigrations().Run(map[string]json.RawMessage{}, 1, CurrentSchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, []string{SliceTestDrivePrefs}, keys(got))
}

func TestAppMigrations_BadLayoutFails(t *testing.T) {
	in := map[string]json.RawMessage{SliceDashboardLayout: raw(`{"not":"a list"}`)}
	_, err := AppMigrations().Run(in, 5, 6)
	assert.ErrorIs(t, err, ErrMigrationFailed)
}

func TestEditObject(t *testing.T) {
	s := map[string]json.RawMessage{"prefs": raw(`{"limit":12345678901234567890}`)}
	require.NoError(t, EditObject(s, "prefs", func(obj map[string]any) error {
		obj["x"] = true
		return nil
	}))
	assert.JSONEq(t, `{"limit":12345678901234567890,"x":true}`, string(s["prefs"]))

	require.NoError(t, EditObject(s, "missing", func(map[string]any) error {
		t.Fatal("called for a missing slice")
		return nil
	}))
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

package persist

import (
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/salesync/aggregate"
)

// CurrentSchemaVersion is the schema version this build reads and writes.
const CurrentSchemaVersion = 6

// Persisted slice names.
const (
	SliceSession         = "session"
	SliceContractPrefs   = "contract-query-prefs"
	SliceCustomerPrefs   = "customer-query-prefs"
	SliceDashboardLayout = "dashboard-layout"
	SliceDeliveryPrefs   = "delivery-query-prefs"
	SliceTestDrivePrefs  = "testdrive-query-prefs"
)

// Whitelist returns the slice names the application persists.
func Whitelist() []string {
	return []string{
		SliceSession,
		SliceContractPrefs,
		SliceCustomerPrefs,
		SliceDashboardLayout,
		SliceDeliveryPrefs,
		SliceTestDrivePrefs,
	}
}

// QueryPrefs is the persisted sort and filter state of one list screen.
type QueryPrefs struct {
	SortBy       string          `json:"sortBy,omitempty"`
	OrderBy      aggregate.Order `json:"orderBy,omitempty"`
	FilterText   string          `json:"filterText,omitempty"`
	FieldFilters map[string]any  `json:"fieldFilters,omitempty"`
}

// Spec merges the preferences into base, which supplies the screen's
// search fields and locale.
func (p QueryPrefs) Spec(base aggregate.Spec) aggregate.Spec {
	if p.SortBy != "" {
		base.SortBy = p.SortBy
	}
	if p.OrderBy != "" {
		base.OrderBy = p.OrderBy
	}
	base.FilterText = p.FilterText
	base.FieldFilters = p.FieldFilters
	return base
}

// DashboardWidget is one entry of the dashboard-layout slice.
type DashboardWidget struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

// AppDefaults returns the version 6 slices used on first run and after a
// failed migration. The session slice is never defaulted.
func AppDefaults() map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	put := func(name string, v any) {
		raw, _ := json.Marshal(v)
		out[name] = raw
	}
	put(SliceCustomerPrefs, QueryPrefs{SortBy: "name", OrderBy: aggregate.Asc})
	put(SliceContractPrefs, QueryPrefs{SortBy: "signedAt", OrderBy: aggregate.Desc})
	put(SliceTestDrivePrefs, QueryPrefs{SortBy: "scheduledAt", OrderBy: aggregate.Asc})
	put(SliceDeliveryPrefs, QueryPrefs{SortBy: "deliveryDate", OrderBy: aggregate.Asc})
	put(SliceDashboardLayout, []DashboardWidget{{ID: "counters", Visible: true}})
	return out
}

// AppMigrations returns the application chain from version 1 to
// CurrentSchemaVersion. Each step only touches fields that exist at its
// source version.
func AppMigrations() Migrations {
	return Migrations{
		1: renameCustomerSort,
		2: defaultOrderBy,
		3: addTestDrivePrefs,
		4: dropSessionPassword,
		5: expandDashboardLayout,
	}
}

// v1 stored the customer sort field as "sort".
func renameCustomerSort(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	err := EditObject(s, SliceCustomerPrefs, func(obj map[string]any) error {
		if v, ok := obj["sort"]; ok {
			if _, exists := obj["sortBy"]; !exists {
				obj["sortBy"] = v
			}
			delete(obj, "sort")
		}
		return nil
	})
	return s, err
}

// v2 left orderBy implicit.
func defaultOrderBy(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	for _, name := range []string{SliceContractPrefs, SliceCustomerPrefs, SliceDeliveryPrefs} {
		err := EditObject(s, name, func(obj map[string]any) error {
			if _, ok := obj["orderBy"]; !ok {
				obj["orderBy"] = string(aggregate.Asc)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// v4 introduced the test drive list.
func addTestDrivePrefs(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if _, ok := s[SliceTestDrivePrefs]; !ok {
		raw, err := json.Marshal(QueryPrefs{SortBy: "scheduledAt", OrderBy: aggregate.Asc})
		if err != nil {
			return nil, err
		}
		s[SliceTestDrivePrefs] = raw
	}
	return s, nil
}

// v4 and earlier kept the password for silent re-login.
func dropSessionPassword(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	err := EditObject(s, SliceSession, func(obj map[string]any) error {
		delete(obj, "password")
		return nil
	})
	return s, err
}

// v5 stored the dashboard as an ordered list of widget names.
func expandDashboardLayout(s map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	raw, ok := s[SliceDashboardLayout]
	if !ok {
		return s, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("slice %q: %w", SliceDashboardLayout, err)
	}
	widgets := make([]DashboardWidget, 0, len(names))
	for _, n := range names {
		widgets = append(widgets, DashboardWidget{ID: n, Visible: true})
	}
	encoded, err := json.Marshal(widgets)
	if err != nil {
		return nil, err
	}
	s[SliceDashboardLayout] = encoded
	return s, nil
}

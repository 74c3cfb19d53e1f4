package notification

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/sales"
	"github.com/jonwraymond/salesync/tags"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Notification
	}{
		{
			name: "lead",
			raw:  `{"category":"lead.assigned","id":"n1","title":"New lead","data":{"customerId":"42","salespersonId":"s7"}}`,
			want: LeadAssigned{Header: Header{ID: "n1", Title: "New lead"}, CustomerID: "42", SalespersonID: "s7"},
		},
		{
			name: "contract",
			raw:  `{"category":"contract.updated","id":"n2","data":{"contractId":"c1","customerId":"42","status":"signed"}}`,
			want: ContractUpdated{Header: Header{ID: "n2"}, ContractID: "c1", CustomerID: "42", Status: "signed"},
		},
		{
			name: "test drive",
			raw:  `{"category":"testdrive.scheduled","data":{"testDriveId":"t1","scheduledAt":"2026-05-04T10:00:00Z"}}`,
			want: TestDriveScheduled{TestDriveID: "t1", ScheduledAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		},
		{
			name: "delivery",
			raw:  `{"category":"delivery.updated","body":"Ready","data":{"deliveryId":"d1","contractId":"c1"}}`,
			want: DeliveryUpdated{Header: Header{Body: "Ready"}, DeliveryID: "d1", ContractID: "c1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Category(), got.Category())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "unknown category", raw: `{"category":"invoice.paid","data":{}}`, want: ErrUnknownCategory},
		{name: "missing category", raw: `{"data":{}}`, want: ErrUnknownCategory},
		{name: "not json", raw: `nope`, want: ErrInvalid},
		{name: "missing data", raw: `{"category":"lead.assigned"}`, want: ErrInvalid},
		{name: "missing id", raw: `{"category":"delivery.updated","data":{"status":"late"}}`, want: ErrInvalid},
		{name: "bad field type", raw: `{"category":"contract.updated","data":{"contractId":7}}`, want: ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, n)
		})
	}
}

func TestInvalidationTags(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want []tags.Tag
	}{
		{
			name: "lead",
			n:    LeadAssigned{CustomerID: "42"},
			want: []tags.Tag{tags.List(sales.TypeCustomer), tags.List(sales.TypeDashboard), tags.Of(sales.TypeCustomer, "42")},
		},
		{
			name: "contract without customer",
			n:    ContractUpdated{ContractID: "c1"},
			want: []tags.Tag{tags.List(sales.TypeDashboard), tags.Of(sales.TypeContract, "c1")},
		},
		{
			name: "test drive",
			n:    TestDriveScheduled{TestDriveID: "t1", CustomerID: "42"},
			want: []tags.Tag{tags.List(sales.TypeTestDrive), tags.List(sales.TypeDashboard), tags.Of(sales.TypeCustomer, "42")},
		},
		{
			name: "delivery",
			n:    DeliveryUpdated{DeliveryID: "d1", ContractID: "c1"},
			want: []tags.Tag{tags.List(sales.TypeDashboard), tags.Of(sales.TypeDelivery, "d1"), tags.Of(sales.TypeContract, "c1")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InvalidationTags(tt.n))
		})
	}
}

type countingVisitor struct {
	leads, contracts, drives, deliveries int
}

func (v *countingVisitor) LeadAssigned(LeadAssigned)             { v.leads++ }
func (v *countingVisitor) ContractUpdated(ContractUpdated)       { v.contracts++ }
func (v *countingVisitor) TestDriveScheduled(TestDriveScheduled) { v.drives++ }
func (v *countingVisitor) DeliveryUpdated(DeliveryUpdated)       { v.deliveries++ }

func TestAccept_Dispatch(t *testing.T) {
	var v countingVisitor
	for _, n := range []Notification{LeadAssigned{}, DeliveryUpdated{}, DeliveryUpdated{}, TestDriveScheduled{}} {
		n.Accept(&v)
	}
	assert.Equal(t, countingVisitor{leads: 1, drives: 1, deliveries: 2}, v)
}

func TestApply_RefetchesSubscribedQueries(t *testing.T) {
	engine, err := cache.NewEngine(cache.DefaultPolicy())
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	var calls atomic.Int32
	q := cache.Query{
		Endpoint: "deliveries",
		Fetch: func(context.Context) (any, error) {
			calls.Add(1)
			return []string{"d1"}, nil
		},
		Provides: func(any) []tags.Tag {
			return []tags.Tag{tags.List(sales.TypeDelivery), tags.Of(sales.TypeDelivery, "d1")}
		},
	}
	sub, err := engine.Subscribe(q, cache.SubscribeOptions{PollInterval: -1})
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return sub.State().Status == cache.StatusSuccess }, time.Second, time.Millisecond)

	n, err := Decode([]byte(`{"category":"delivery.updated","data":{"deliveryId":"d1"}}`))
	require.NoError(t, err)
	res, err := Apply(context.Background(), engine, n)
	require.NoError(t, err)

	assert.Equal(t, []string{sub.Key()}, res.Refetched)
	assert.Equal(t, int32(2), calls.Load())
}

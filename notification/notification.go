// Package notification decodes push notifications into a closed set of
// variants and maps each one to the cache tags it makes stale.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/sales"
	"github.com/jonwraymond/salesync/tags"
)

// Sentinel errors for decoding.
var (
	ErrUnknownCategory = errors.New("notification: unknown category")
	ErrInvalid         = errors.New("notification: payload is invalid")
)

// Category is the wire discriminator of a notification.
type Category string

const (
	CategoryLeadAssigned       Category = "lead.assigned"
	CategoryContractUpdated    Category = "contract.updated"
	CategoryTestDriveScheduled Category = "testdrive.scheduled"
	CategoryDeliveryUpdated    Category = "delivery.updated"
)

// Header carries the fields every notification has.
type Header struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notification is one of LeadAssigned, ContractUpdated, TestDriveScheduled
// or DeliveryUpdated. The set is closed; use Accept for exhaustive handling.
type Notification interface {
	Category() Category
	Accept(v Visitor)
	sealed()
}

// Visitor handles every notification variant.
type Visitor interface {
	LeadAssigned(n LeadAssigned)
	ContractUpdated(n ContractUpdated)
	TestDriveScheduled(n TestDriveScheduled)
	DeliveryUpdated(n DeliveryUpdated)
}

// LeadAssigned tells a salesperson a customer was assigned to them.
type LeadAssigned struct {
	Header
	CustomerID    string `json:"customerId"`
	SalespersonID string `json:"salespersonId,omitempty"`
}

// ContractUpdated reports a contract status change.
type ContractUpdated struct {
	Header
	ContractID string `json:"contractId"`
	CustomerID string `json:"customerId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// TestDriveScheduled reports a booked or moved test drive.
type TestDriveScheduled struct {
	Header
	TestDriveID string    `json:"testDriveId"`
	CustomerID  string    `json:"customerId,omitempty"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// DeliveryUpdated reports a delivery status change.
type DeliveryUpdated struct {
	Header
	DeliveryID string `json:"deliveryId"`
	ContractID string `json:"contractId,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (LeadAssigned) Category() Category       { return CategoryLeadAssigned }
func (ContractUpdated) Category() Category    { return CategoryContractUpdated }
func (TestDriveScheduled) Category() Category { return CategoryTestDriveScheduled }
func (DeliveryUpdated) Category() Category    { return CategoryDeliveryUpdated }

func (n LeadAssigned) Accept(v Visitor)       { v.LeadAssigned(n) }
func (n ContractUpdated) Accept(v Visitor)    { v.ContractUpdated(n) }
func (n TestDriveScheduled) Accept(v Visitor) { v.TestDriveScheduled(n) }
func (n DeliveryUpdated) Accept(v Visitor)    { v.DeliveryUpdated(n) }

func (LeadAssigned) sealed()       {}
func (ContractUpdated) sealed()    {}
func (TestDriveScheduled) sealed() {}
func (DeliveryUpdated) sealed()    {}

// Decode parses a payload of the form {"category": ..., "data": {...}} with
// the header fields at the top level.
func Decode(raw []byte) (Notification, error) {
	var env struct {
		Header
		Category Category        `json:"category"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	switch env.Category {
	case CategoryLeadAssigned:
		var n LeadAssigned
		if err := decodeData(env.Data, &n); err != nil {
			return nil, err
		}
		n.Header = env.Header
		return finish(n, required("customerId", n.CustomerID))
	case CategoryContractUpdated:
		var n ContractUpdated
		if err := decodeData(env.Data, &n); err != nil {
			return nil, err
		}
		n.Header = env.Header
		return finish(n, required("contractId", n.ContractID))
	case CategoryTestDriveScheduled:
		var n TestDriveScheduled
		if err := decodeData(env.Data, &n); err != nil {
			return nil, err
		}
		n.Header = env.Header
		return finish(n, required("testDriveId", n.TestDriveID))
	case CategoryDeliveryUpdated:
		var n DeliveryUpdated
		if err := decodeData(env.Data, &n); err != nil {
			return nil, err
		}
		n.Header = env.Header
		return finish(n, required("deliveryId", n.DeliveryID))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, env.Category)
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalid)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func finish[T Notification](n T, err error) (Notification, error) {
	if err != nil {
		return nil, err
	}
	return n, nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalid, field)
	}
	return nil
}

// InvalidationTags returns the tags n makes stale.
func InvalidationTags(n Notification) []tags.Tag {
	var c tagCollector
	n.Accept(&c)
	return c.tags
}

type tagCollector struct {
	tags []tags.Tag
}

func (c *tagCollector) add(typ, id string) {
	if id != "" {
		c.tags = append(c.tags, tags.Of(typ, id))
	}
}

func (c *tagCollector) LeadAssigned(n LeadAssigned) {
	c.tags = append(c.tags, tags.List(sales.TypeCustomer), tags.List(sales.TypeDashboard))
	c.add(sales.TypeCustomer, n.CustomerID)
}

func (c *tagCollector) ContractUpdated(n ContractUpdated) {
	c.tags = append(c.tags, tags.List(sales.TypeDashboard))
	c.add(sales.TypeContract, n.ContractID)
	c.add(sales.TypeCustomer, n.CustomerID)
}

func (c *tagCollector) TestDriveScheduled(n TestDriveScheduled) {
	c.tags = append(c.tags, tags.List(sales.TypeTestDrive), tags.List(sales.TypeDashboard))
	c.add(sales.TypeCustomer, n.CustomerID)
}

func (c *tagCollector) DeliveryUpdated(n DeliveryUpdated) {
	c.tags = append(c.tags, tags.List(sales.TypeDashboard))
	c.add(sales.TypeDelivery, n.DeliveryID)
	c.add(sales.TypeContract, n.ContractID)
}

// Invalidator is the part of the cache engine a notification touches.
type Invalidator interface {
	Invalidate(ctx context.Context, ts ...tags.Tag) (cache.InvalidationResult, error)
}

// Apply invalidates the tags of a decoded notification.
func Apply(ctx context.Context, inv Invalidator, n Notification) (cache.InvalidationResult, error) {
	return inv.Invalidate(ctx, InvalidationTags(n)...)
}

var (
	_ Notification = LeadAssigned{}
	_ Notification = ContractUpdated{}
	_ Notification = TestDriveScheduled{}
	_ Notification = DeliveryUpdated{}
	_ Visitor      = (*tagCollector)(nil)
	_ Invalidator  = (*cache.Engine)(nil)
)

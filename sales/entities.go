package sales

import (
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/salesync/aggregate"
)

// Resource types used in tags.
const (
	TypeCustomer  = "Customer"
	TypeContract  = "Contract"
	TypeTestDrive = "TestDrive"
	TypeDelivery  = "Delivery"
	TypeDashboard = "Dashboard"
)

// Customer is a lead or an existing client.
type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	City      string    `json:"city,omitempty"`
	Status    string    `json:"status"`
	DealerID  string    `json:"dealerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResourceID implements Entity.
func (c Customer) ResourceID() string { return c.ID }

// Field implements aggregate.Fielder.
func (c Customer) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "firstName":
		return c.FirstName
	case "lastName":
		return c.LastName
	case "name":
		return strings.TrimSpace(c.LastName + " " + c.FirstName)
	case "email":
		return c.Email
	case "phone":
		return c.Phone
	case "city":
		return c.City
	case "status":
		return c.Status
	case "dealerId":
		return c.DealerID
	case "createdAt":
		return c.CreatedAt
	}
	return nil
}

// SearchText implements aggregate.Searcher.
func (c Customer) SearchText() string {
	return strings.Join([]string{c.FirstName, c.LastName, c.Email, c.Phone, c.City}, "\n")
}

// Contract is a signed or draft sale.
type Contract struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId"`
	Customer   string     `json:"customerName,omitempty"`
	Vehicle    string     `json:"vehicle"`
	Amount     *float64   `json:"amount"`
	Status     string     `json:"status"`
	SignedAt   *time.Time `json:"signedAt"`
}

// ResourceID implements Entity.
func (c Contract) ResourceID() string { return c.ID }

// Field implements aggregate.Fielder.
func (c Contract) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "customerId":
		return c.CustomerID
	case "customerName":
		return c.Customer
	case "vehicle":
		return c.Vehicle
	case "amount":
		return c.Amount
	case "status":
		return c.Status
	case "signedAt":
		return c.SignedAt
	}
	return nil
}

// SearchText implements aggregate.Searcher.
func (c Contract) SearchText() string {
	return strings.Join([]string{c.ID, c.Customer, c.Vehicle}, "\n")
}

// TestDrive is a scheduled vehicle trial.
type TestDrive struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	Customer    string    `json:"customerName,omitempty"`
	Vehicle     string    `json:"vehicle"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      string    `json:"status"`
}

// ResourceID implements Entity.
func (d TestDrive) ResourceID() string { return d.ID }

// Field implements aggregate.Fielder.
func (d TestDrive) Field(name string) any {
	switch name {
	case "id":
		return d.ID
	case "customerId":
		return d.CustomerID
	case "customerName":
		return d.Customer
	case "vehicle":
		return d.Vehicle
	case "scheduledAt":
		return d.ScheduledAt
	case "status":
		return d.Status
	}
	return nil
}

// SearchText implements aggregate.Searcher.
func (d TestDrive) SearchText() string {
	return d.Customer + "\n" + d.Vehicle
}

// Delivery is the hand-over of a sold vehicle.
type Delivery struct {
	ID           string     `json:"id"`
	ContractID   string     `json:"contractId"`
	CustomerID   string     `json:"customerId"`
	Customer     string     `json:"customerName,omitempty"`
	Vehicle      string     `json:"vehicle"`
	Status       string     `json:"status"`
	DeliveryDate *time.Time `json:"deliveryDate"`
}

// ResourceID implements Entity.
func (d Delivery) ResourceID() string { return d.ID }

// Field implements aggregate.Fielder.
func (d Delivery) Field(name string) any {
	switch name {
	case "id":
		return d.ID
	case "contractId":
		return d.ContractID
	case "customerId":
		return d.CustomerID
	case "customerName":
		return d.Customer
	case "vehicle":
		return d.Vehicle
	case "status":
		return d.Status
	case "deliveryDate":
		return d.DeliveryDate
	}
	return nil
}

// SearchText implements aggregate.Searcher.
func (d Delivery) SearchText() string {
	return d.Customer + "\n" + d.Vehicle + "\n" + d.ContractID
}

// DashboardCounters are the figures on the home screen.
type DashboardCounters struct {
	OpenLeads         int `json:"openLeads"`
	SignedContracts   int `json:"signedContracts"`
	TestDrivesToday   int `json:"testDrivesToday"`
	PendingDeliveries int `json:"pendingDeliveries"`
}

// Labels returns the counters keyed by widget id.
func (c DashboardCounters) Labels() map[string]string {
	return map[string]string{
		"leads":      strconv.Itoa(c.OpenLeads),
		"contracts":  strconv.Itoa(c.SignedContracts),
		"testdrives": strconv.Itoa(c.TestDrivesToday),
		"deliveries": strconv.Itoa(c.PendingDeliveries),
	}
}

var (
	_ aggregate.Fielder  = Customer{}
	_ aggregate.Searcher = Customer{}
	_ aggregate.Fielder  = Contract{}
	_ aggregate.Fielder  = TestDrive{}
	_ aggregate.Fielder  = Delivery{}
)

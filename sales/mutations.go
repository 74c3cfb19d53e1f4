package sales

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/tags"
)

// CustomerInput is the writable part of a customer.
type CustomerInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	City      string `json:"city,omitempty"`
	Status    string `json:"status,omitempty"`
}

// CreateCustomer adds a customer. The new id is unknown to every query, so
// only the list and dashboard tags are invalidated.
func (a *API) CreateCustomer(in CustomerInput) cache.Mutation {
	return cache.Mutation{
		Endpoint: "createCustomer",
		Run: func(ctx context.Context) (any, error) {
			var c Customer
			err := a.send(ctx, http.MethodPost, "createCustomer", "/customers", in, &c)
			return c, err
		},
		Invalidates: func(any) []tags.Tag {
			return []tags.Tag{tags.List(TypeCustomer), tags.List(TypeDashboard)}
		},
	}
}

// UpdateCustomer replaces the writable fields of customer id.
func (a *API) UpdateCustomer(id string, in CustomerInput) cache.Mutation {
	return cache.Mutation{
		Endpoint: "updateCustomer",
		Run: func(ctx context.Context) (any, error) {
			if id == "" {
				return nil, ErrMissingID
			}
			var c Customer
			err := a.send(ctx, http.MethodPut, "updateCustomer", "/customers/"+url.PathEscape(id), in, &c)
			return c, err
		},
		Invalidates: func(any) []tags.Tag {
			return []tags.Tag{tags.Of(TypeCustomer, id)}
		},
	}
}

// DeleteCustomer removes customer id.
func (a *API) DeleteCustomer(id string) cache.Mutation {
	return cache.Mutation{
		Endpoint: "deleteCustomer",
		Run: func(ctx context.Context) (any, error) {
			if id == "" {
				return nil, ErrMissingID
			}
			return nil, a.send(ctx, http.MethodDelete, "deleteCustomer", "/customers/"+url.PathEscape(id), nil, nil)
		},
		Invalidates: func(any) []tags.Tag {
			return []tags.Tag{tags.Of(TypeCustomer, id), tags.List(TypeDashboard)}
		},
	}
}

// ContractInput opens a contract for a customer.
type ContractInput struct {
	CustomerID string  `json:"customerId"`
	Vehicle    string  `json:"vehicle"`
	Amount     float64 `json:"amount"`
}

// CreateContract adds a contract and refreshes its customer.
func (a *API) CreateContract(in ContractInput) cache.Mutation {
	return cache.Mutation{
		Endpoint: "createContract",
		Run: func(ctx context.Context) (any, error) {
			var c Contract
			err := a.send(ctx, http.MethodPost, "createContract", "/contracts", in, &c)
			return c, err
		},
		Invalidates: func(any) []tags.Tag {
			return []tags.Tag{
				tags.List(TypeContract),
				tags.Of(TypeCustomer, in.CustomerID),
				tags.List(TypeDashboard),
			}
		},
	}
}

// TestDriveInput books a test drive.
type TestDriveInput struct {
	CustomerID  string    `json:"customerId"`
	Vehicle     string    `json:"vehicle"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// ScheduleTestDrive books a test drive.
func (a *API) ScheduleTestDrive(in TestDriveInput) cache.Mutation {
	return cache.Mutation{
		Endpoint: "scheduleTestDrive",
		Run: func(ctx context.Context) (any, error) {
			var d TestDrive
			err := a.send(ctx, http.MethodPost, "scheduleTestDrive", "/test-drives", in, &d)
			return d, err
		},
		Invalidates: func(any) []tags.Tag {
			return []tags.Tag{
				tags.List(TypeTestDrive),
				tags.Of(TypeCustomer, in.CustomerID),
				tags.List(TypeDashboard),
			}
		},
	}
}

// CompleteDelivery marks delivery id as handed over. The contract it belongs
// to is taken from the response.
func (a *API) CompleteDelivery(id string) cache.Mutation {
	return cache.Mutation{
		Endpoint: "completeDelivery",
		Run: func(ctx context.Context) (any, error) {
			if id == "" {
				return nil, ErrMissingID
			}
			var d Delivery
			err := a.send(ctx, http.MethodPost, "completeDelivery", "/deliveries/"+url.PathEscape(id)+"/complete", nil, &d)
			return d, err
		},
		Invalidates: func(result any) []tags.Tag {
			out := []tags.Tag{tags.Of(TypeDelivery, id), tags.List(TypeDashboard)}
			if d, ok := result.(Delivery); ok && d.ContractID != "" {
				out = append(out, tags.Of(TypeContract, d.ContractID))
			}
			return out
		},
	}
}

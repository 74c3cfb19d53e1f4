package sales

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/tags"
	"github.com/jonwraymond/salesync/transport"
)

// ErrMissingID is returned by operations that need an entity id.
var ErrMissingID = errors.New("sales: id is required")

// Doer executes one API request.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (transport.Response, error)
}

// Entity is anything the API returns with an id.
type Entity interface {
	ResourceID() string
}

// API builds queries and mutations over a Doer.
type API struct {
	doer Doer
}

// NewAPI returns an API backed by d, usually a *transport.Client.
func NewAPI(d Doer) *API {
	return &API{doer: d}
}

// CustomerFilter narrows the customer list server-side.
type CustomerFilter struct {
	Status   string `json:"status,omitempty"`
	DealerID string `json:"dealerId,omitempty"`
}

func (f CustomerFilter) values() url.Values {
	v := url.Values{}
	setIf(v, "status", f.Status)
	setIf(v, "dealerId", f.DealerID)
	return v
}

// Customers lists customers.
func (a *API) Customers(f CustomerFilter) cache.Query {
	return listQuery[Customer](a, "customers", "/customers", TypeCustomer, f, f.values())
}

// Customer reads one customer.
func (a *API) Customer(id string) cache.Query {
	return cache.Query{
		Endpoint: "customer",
		Params:   map[string]string{"id": id},
		Fetch: func(ctx context.Context) (any, error) {
			if id == "" {
				return nil, ErrMissingID
			}
			var c Customer
			err := a.get(ctx, "customer", "/customers/"+url.PathEscape(id), nil, &c)
			return c, err
		},
		Provides: func(any) []tags.Tag {
			return []tags.Tag{tags.Of(TypeCustomer, id)}
		},
	}
}

// ContractFilter narrows the contract list server-side.
type ContractFilter struct {
	CustomerID string `json:"customerId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Contracts lists contracts.
func (a *API) Contracts(f ContractFilter) cache.Query {
	v := url.Values{}
	setIf(v, "customerId", f.CustomerID)
	setIf(v, "status", f.Status)
	return listQuery[Contract](a, "contracts", "/contracts", TypeContract, f, v)
}

// TestDriveFilter narrows the test drive list server-side.
type TestDriveFilter struct {
	CustomerID string    `json:"customerId,omitempty"`
	From       time.Time `json:"from,omitzero"`
}

// TestDrives lists test drives.
func (a *API) TestDrives(f TestDriveFilter) cache.Query {
	v := url.Values{}
	setIf(v, "customerId", f.CustomerID)
	if !f.From.IsZero() {
		v.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	return listQuery[TestDrive](a, "testDrives", "/test-drives", TypeTestDrive, f, v)
}

// DeliveryFilter narrows the delivery list server-side.
type DeliveryFilter struct {
	Status string `json:"status,omitempty"`
}

// Deliveries lists deliveries.
func (a *API) Deliveries(f DeliveryFilter) cache.Query {
	v := url.Values{}
	setIf(v, "status", f.Status)
	return listQuery[Delivery](a, "deliveries", "/deliveries", TypeDelivery, f, v)
}

// DashboardCounters reads the home screen figures.
func (a *API) DashboardCounters() cache.Query {
	return cache.Query{
		Endpoint: "dashboardCounters",
		Fetch: func(ctx context.Context) (any, error) {
			var c DashboardCounters
			err := a.get(ctx, "dashboardCounters", "/dashboard/counters", nil, &c)
			return c, err
		},
		Provides: func(any) []tags.Tag {
			return []tags.Tag{tags.List(TypeDashboard)}
		},
	}
}

// listQuery reads a JSON array of T and provides the LIST tag of typ plus
// one tag per returned entity.
func listQuery[T Entity](a *API, endpoint, path, typ string, params any, query url.Values) cache.Query {
	return cache.Query{
		Endpoint: endpoint,
		Params:   params,
		Fetch: func(ctx context.Context) (any, error) {
			var items []T
			err := a.get(ctx, endpoint, path, query, &items)
			return items, err
		},
		Provides: func(data any) []tags.Tag {
			items, _ := data.([]T)
			out := make([]tags.Tag, 0, len(items)+1)
			out = append(out, tags.List(typ))
			for _, it := range items {
				if id := it.ResourceID(); id != "" {
					out = append(out, tags.Of(typ, id))
				}
			}
			return out
		},
	}
}

func (a *API) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	resp, err := a.doer.Do(ctx, transport.Request{
		Method:   http.MethodGet,
		Path:     path,
		Params:   query,
		Endpoint: endpoint,
	})
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("sales: decode %s: %w", endpoint, err)
	}
	return nil
}

func (a *API) send(ctx context.Context, method, endpoint, path string, body, out any) error {
	resp, err := a.doer.Do(ctx, transport.Request{
		Method:   method,
		Path:     path,
		Body:     body,
		Endpoint: endpoint,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("sales: decode %s: %w", endpoint, err)
	}
	return nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

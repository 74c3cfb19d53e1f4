package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/salesync/tags"
)

// MaxKeyLength is the maximum allowed length for a query key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey    = errors.New("cache: key is invalid")
	ErrKeyTooLong    = errors.New("cache: key exceeds max length")
	ErrNilFetch      = errors.New("cache: query has no fetch function")
	ErrNilMutation   = errors.New("cache: mutation has no run function")
	ErrInvalidQuery  = errors.New("cache: query endpoint is empty")
	ErrInvalidPolicy = errors.New("cache: policy is invalid")
	ErrReset         = errors.New("cache: engine was reset")
	ErrClosed        = errors.New("cache: engine is closed")

	// ErrInvariant marks a defect inside the engine, such as a tag index
	// entry whose cache entry is gone.
	ErrInvariant = errors.New("cache: invariant violated")
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "uninitialized"
	}
}

// FetchFunc performs the remote read for a query.
type FetchFunc func(ctx context.Context) (any, error)

// Query describes one cacheable read.
type Query struct {
	// Endpoint is the logical endpoint name, e.g. "customers".
	Endpoint string

	// Params are the request parameters. Structurally equal params yield the same key.
	Params any

	// Fetch performs the read.
	Fetch FetchFunc

	// Provides returns the tags a successful result depends on. Nil provides nothing.
	Provides func(data any) []tags.Tag
}

// Mutation describes one write.
type Mutation struct {
	Endpoint string

	// Run performs the write.
	Run func(ctx context.Context) (any, error)

	// Invalidates returns the tags changed by a successful write.
	Invalidates func(result any) []tags.Tag
}

// State is a point-in-time snapshot of one cache entry.
type State struct {
	Key       string
	Endpoint  string
	Status    Status
	Data      any
	Err       error
	FetchedAt time.Time

	// Stale is set when the entry was invalidated and a refetch has not landed yet.
	Stale bool

	// Fetching is true while a fetch for this key is in flight.
	Fetching bool

	Subscribers int
}

// HasData reports whether the entry holds a successful result, possibly from
// before a later failure.
func (s State) HasData() bool {
	return !s.FetchedAt.IsZero()
}

// Data returns the entry data asserted to T.
func Data[T any](s State) (T, bool) {
	v, ok := s.Data.(T)
	return v, ok
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/salesync/tags"
)

var errOffline = errors.New("offline")

// fakeEndpoint is a test double for one remote read.
type fakeEndpoint struct {
	calls atomic.Int64

	mu    sync.Mutex
	value any
	err   error
	gate  chan struct{}
}

func (f *fakeEndpoint) set(value any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value, f.err = value, err
}

// hold makes fetches block until release is called.
func (f *fakeEndpoint) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

func (f *fakeEndpoint) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

func (f *fakeEndpoint) fetch(ctx context.Context) (any, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

func (f *fakeEndpoint) query(endpoint string, params any, provided ...tags.Tag) Query {
	return Query{
		Endpoint: endpoint,
		Params:   params,
		Fetch:    f.fetch,
		Provides: func(any) []tags.Tag { return provided },
	}
}

func newTestEngine(t *testing.T, policy Policy, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(policy, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func testPolicy() Policy {
	return Policy{KeepUnusedFor: time.Minute}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func mustKey(t *testing.T, e *Engine, q Query) string {
	t.Helper()
	key, err := e.Key(q)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	return key
}

func subscribeLoaded(t *testing.T, e *Engine, q Query, opts SubscribeOptions) *Subscription {
	t.Helper()
	sub, err := e.Subscribe(q, opts)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	t.Cleanup(sub.Close)
	waitFor(t, "initial fetch", func() bool {
		st := sub.State()
		return !st.Fetching && st.Status != StatusLoading
	})
	// Let the finished flight unregister so later calls start a new one.
	time.Sleep(5 * time.Millisecond)
	return sub
}

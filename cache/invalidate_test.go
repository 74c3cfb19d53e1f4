package cache

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/salesync/tags"
)

// TestEngine_Invalidate verifies subscribed keys refetch exactly once and
// unsubscribed keys are evicted without a fetch.
func TestEngine_Invalidate(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	ctx := context.Background()

	list := &fakeEndpoint{value: "list"}
	listQ := list.query("customers", nil, tags.List("Customer"), tags.Of("Customer", "1"))
	detail := &fakeEndpoint{value: "detail"}
	detailQ := detail.query("customer", map[string]any{"id": "1"}, tags.Of("Customer", "1"))
	other := &fakeEndpoint{value: "contracts"}
	otherQ := other.query("contracts", nil, tags.List("Contract"))

	_ = subscribeLoaded(t, e, listQ, SubscribeOptions{})
	_ = subscribeLoaded(t, e, otherQ, SubscribeOptions{})
	if _, err := e.Read(ctx, detailQ); err != nil {
		t.Fatal(err)
	}

	res, err := e.Invalidate(ctx, tags.Of("Customer", "1"), tags.List("Customer"))
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	listKey := mustKey(t, e, listQ)
	detailKey := mustKey(t, e, detailQ)
	if !slices.Equal(res.Refetched, []string{listKey}) {
		t.Errorf("Refetched = %v, want [%s]", res.Refetched, listKey)
	}
	if !slices.Equal(res.Evicted, []string{detailKey}) {
		t.Errorf("Evicted = %v, want [%s]", res.Evicted, detailKey)
	}
	if got := list.calls.Load(); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}
	if got := detail.calls.Load(); got != 1 {
		t.Errorf("detail calls = %d, want 1 (evicted, not refetched)", got)
	}
	if got := other.calls.Load(); got != 1 {
		t.Errorf("unrelated query refetched: calls = %d", got)
	}
	if st := e.State(detailKey); st.Status != StatusUninitialized {
		t.Errorf("evicted entry still present: %+v", st)
	}
	if st := e.State(listKey); st.Stale || st.Status != StatusSuccess {
		t.Errorf("refetched entry = %+v, want fresh success", st)
	}
}

func TestEngine_InvalidateNoProviders(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	res, err := e.Invalidate(context.Background(), tags.Of("Delivery", "404"))
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if len(res.Refetched) != 0 || len(res.Evicted) != 0 {
		t.Errorf("Invalidate() = %+v, want no-op", res)
	}
}

// TestEngine_IndexConsistency verifies the tag index only references cached keys.
func TestEngine_IndexConsistency(t *testing.T) {
	e := newTestEngine(t, Policy{})
	ctx := context.Background()

	a := &fakeEndpoint{value: 1}
	b := &fakeEndpoint{value: 2}
	aQ := a.query("a", nil, tags.List("Customer"))
	bQ := b.query("b", nil, tags.Of("Customer", "9"))

	sub := subscribeLoaded(t, e, aQ, SubscribeOptions{})
	_, _ = e.Read(ctx, bQ)
	_, _ = e.Invalidate(ctx, tags.Of("Customer", "9"))
	sub.Close()

	// KeepUnusedFor is zero so the closed subscription's entry goes right away.
	waitFor(t, "eviction", func() bool { return len(e.Keys()) == 0 })

	assertIndexSubset(t, e)
	if n := e.Index().Len(); n != 0 {
		t.Errorf("index Len() = %d after all entries evicted", n)
	}
}

// TestEngine_InvalidateDanglingKey verifies a key left in the index without an
// entry is dropped rather than refetched, and reported as an invariant error.
func TestEngine_InvalidateDanglingKey(t *testing.T) {
	var reported error
	e := newTestEngine(t, testPolicy(), WithErrorHandler(func(_ context.Context, _ string, err error) {
		reported = err
	}))
	if err := e.Index().SetProvidedTags("query:ghost:0", []tags.Tag{tags.List("Customer")}); err != nil {
		t.Fatal(err)
	}

	res, err := e.Invalidate(context.Background(), tags.List("Customer"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Refetched)+len(res.Evicted) != 0 {
		t.Errorf("dangling key was acted on: %+v", res)
	}
	if keys := e.Index().Keys(); len(keys) != 0 {
		t.Errorf("dangling key left in index: %v", keys)
	}
	if !errors.Is(reported, ErrInvariant) {
		t.Errorf("reported = %v, want ErrInvariant", reported)
	}
}

// TestEngine_InvalidateRacingReset verifies entries dropped by a concurrent
// Reset are not reported as index violations.
func TestEngine_InvalidateRacingReset(t *testing.T) {
	var violations atomic.Int64
	e := newTestEngine(t, testPolicy(), WithErrorHandler(func(_ context.Context, _ string, err error) {
		if errors.Is(err, ErrInvariant) {
			violations.Add(1)
		}
	}))
	ctx := context.Background()
	detail := &fakeEndpoint{value: "detail"}

	for i := range 200 {
		q := detail.query("customer", map[string]any{"id": i}, tags.List("Customer"))
		if _, err := e.Read(ctx, q); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.Invalidate(ctx, tags.List("Customer")); err != nil {
				t.Errorf("Invalidate() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			runtime.Gosched()
			e.Reset()
		}()
		wg.Wait()
	}

	if n := violations.Load(); n != 0 {
		t.Errorf("reported %d invariant violations, want 0", n)
	}
	if keys := e.Index().Keys(); len(keys) != 0 {
		t.Errorf("index not empty after reset: %v", keys)
	}
}

func TestEngine_Mutate(t *testing.T) {
	var reported int
	e := newTestEngine(t, testPolicy(), WithErrorHandler(func(context.Context, string, error) { reported++ }))
	ctx := context.Background()

	list := &fakeEndpoint{value: []string{"ana"}}
	listQ := list.query("customers", nil, tags.List("Customer"))
	_ = subscribeLoaded(t, e, listQ, SubscribeOptions{})

	create := Mutation{
		Endpoint: "createCustomer",
		Run: func(context.Context) (any, error) {
			list.set([]string{"ana", "bo"}, nil)
			return "c-2", nil
		},
		Invalidates: func(result any) []tags.Tag {
			return []tags.Tag{tags.List("Customer"), tags.Of("Customer", result.(string))}
		},
	}
	got, err := e.Mutate(ctx, create)
	if err != nil || got != "c-2" {
		t.Fatalf("Mutate() = %v, %v", got, err)
	}
	st := e.State(mustKey(t, e, listQ))
	if names, _ := Data[[]string](st); !slices.Equal(names, []string{"ana", "bo"}) {
		t.Errorf("list after mutation = %v", st.Data)
	}

	failing := Mutation{
		Endpoint: "createCustomer",
		Run:      func(context.Context) (any, error) { return nil, errOffline },
		Invalidates: func(any) []tags.Tag {
			t.Error("Invalidates called for failed mutation")
			return nil
		},
	}
	before := list.calls.Load()
	if _, err := e.Mutate(ctx, failing); !errors.Is(err, errOffline) {
		t.Fatalf("Mutate() error = %v, want errOffline", err)
	}
	if list.calls.Load() != before {
		t.Error("failed mutation triggered a refetch")
	}
	if reported != 1 {
		t.Errorf("error handler calls = %d, want 1", reported)
	}

	if _, err := e.Mutate(ctx, Mutation{}); !errors.Is(err, ErrNilMutation) {
		t.Errorf("Mutate(empty) error = %v", err)
	}
}

func TestEngine_Reconnected(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	ctx := context.Background()

	opted := &fakeEndpoint{value: 1}
	plain := &fakeEndpoint{value: 2}
	_ = subscribeLoaded(t, e, opted.query("dashboard", nil), SubscribeOptions{RefetchOnReconnect: true})
	_ = subscribeLoaded(t, e, plain.query("contracts", nil), SubscribeOptions{})

	if err := e.Reconnected(ctx); err != nil {
		t.Fatalf("Reconnected() error = %v", err)
	}
	if got := opted.calls.Load(); got != 2 {
		t.Errorf("opted-in calls = %d, want 2", got)
	}
	if got := plain.calls.Load(); got != 1 {
		t.Errorf("plain calls = %d, want 1", got)
	}
}

func assertIndexSubset(t *testing.T, e *Engine) {
	t.Helper()
	cached := e.Keys()
	for _, key := range e.Index().Keys() {
		if !slices.Contains(cached, key) {
			t.Errorf("index references %q which is not cached", key)
		}
	}
}

package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubscription_CountAndClose(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	api := &fakeEndpoint{value: "x"}
	q := api.query("customers", nil)
	key := mustKey(t, e, q)

	s1 := subscribeLoaded(t, e, q, SubscribeOptions{})
	s2 := subscribeLoaded(t, e, q, SubscribeOptions{})

	if got := e.SubscriberCount(key); got != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", got)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 for two subscribers", got)
	}

	s1.Close()
	s1.Close()
	if got := e.SubscriberCount(key); got != 1 {
		t.Errorf("SubscriberCount() after double Close = %d, want 1", got)
	}
	s2.Close()
	if got := e.SubscriberCount(key); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}
	if s2.Key() != key {
		t.Errorf("Key() = %q, want %q", s2.Key(), key)
	}
}

// TestSubscription_GracePeriod verifies a quick resubscribe reuses the entry
// and an abandoned entry is evicted after KeepUnusedFor.
func TestSubscription_GracePeriod(t *testing.T) {
	e := newTestEngine(t, Policy{KeepUnusedFor: 50 * time.Millisecond})
	api := &fakeEndpoint{value: "x"}
	q := api.query("customers", nil)
	key := mustKey(t, e, q)

	sub := subscribeLoaded(t, e, q, SubscribeOptions{})
	sub.Close()

	again := subscribeLoaded(t, e, q, SubscribeOptions{})
	if got := api.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 after resubscribe within grace", got)
	}
	time.Sleep(80 * time.Millisecond)
	if st := e.State(key); st.Status != StatusSuccess {
		t.Fatalf("entry evicted while subscribed: %+v", st)
	}

	again.Close()
	waitFor(t, "eviction", func() bool { return e.State(key).Status == StatusUninitialized })
}

// TestSubscription_Polling verifies polling runs while subscribed and stops
// with the last subscriber.
func TestSubscription_Polling(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	api := &fakeEndpoint{value: "x"}
	q := api.query("dashboard", nil)

	sub := subscribeLoaded(t, e, q, SubscribeOptions{PollInterval: 5 * time.Millisecond})
	waitFor(t, "polling", func() bool { return api.calls.Load() >= 3 })

	sub.Close()
	time.Sleep(20 * time.Millisecond)
	stopped := api.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := api.calls.Load(); got != stopped {
		t.Errorf("poller kept running after last unsubscribe: %d -> %d", stopped, got)
	}
}

func TestSubscription_OnChange(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	api := &fakeEndpoint{value: "v1"}
	q := api.query("contracts", nil)

	var mu sync.Mutex
	var seen []any
	sub := subscribeLoaded(t, e, q, SubscribeOptions{OnChange: func(st State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st.Data)
	}})

	seenLen := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	waitFor(t, "first change", func() bool { return seenLen() == 1 })

	api.set("v2", nil)
	waitFor(t, "second change", func() bool {
		_, _ = sub.Refetch(context.Background())
		return seenLen() >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != "v1" || seen[len(seen)-1] != "v2" {
		t.Errorf("OnChange saw %v, want v1 then v2", seen)
	}
}

func TestSubscription_RefetchAfterReset(t *testing.T) {
	e := newTestEngine(t, testPolicy())
	api := &fakeEndpoint{value: "x"}
	sub := subscribeLoaded(t, e, api.query("customers", nil), SubscribeOptions{})

	e.Reset()
	if _, err := sub.Refetch(context.Background()); err != ErrReset {
		t.Errorf("Refetch() after Reset = %v, want ErrReset", err)
	}
}

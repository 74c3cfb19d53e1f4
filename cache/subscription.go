package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/salesync/observe"
)

// SubscribeOptions configures one subscription.
type SubscribeOptions struct {
	// PollInterval re-reads the query while the subscription is live.
	// Zero uses the policy default; negative disables polling.
	PollInterval time.Duration

	// RefetchOnReconnect refetches the query when connectivity returns.
	RefetchOnReconnect bool

	// OnChange is called with the new state after each fetch result is applied.
	OnChange func(State)
}

// Subscription is one live consumer of a cache entry. Close releases it.
type Subscription struct {
	engine *Engine
	ent    *entry
	id     uint64
	opts   SubscribeOptions
	once   sync.Once
}

// Subscribe registers a consumer for q and starts a fetch when the entry is
// not fresh. While at least one subscription is open, the entry is never
// evicted by age; polling runs at the shortest requested interval.
func (e *Engine) Subscribe(q Query, opts SubscribeOptions) (*Subscription, error) {
	if q.Fetch == nil {
		return nil, ErrNilFetch
	}
	key, err := e.Key(q)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	ent := e.entryLocked(key, q)
	e.stopEvictionLocked(ent)

	e.nextSub++
	sub := &Subscription{engine: e, ent: ent, id: e.nextSub, opts: opts}
	ent.subs[sub.id] = sub
	e.updatePollerLocked(ent)

	if !e.freshLocked(ent) && !ent.fetching {
		e.startFetchLocked(ent, false)
	}
	e.logger.Debug(context.Background(), "query subscribed",
		observe.F("key", key), observe.F("subscribers", len(ent.subs)))
	return sub, nil
}

// Key returns the query key of the subscription.
func (s *Subscription) Key() string {
	return s.ent.key
}

// State returns the current state of the subscribed entry.
func (s *Subscription) State() State {
	return s.engine.State(s.ent.key)
}

// Refetch fetches the subscribed query regardless of freshness.
func (s *Subscription) Refetch(ctx context.Context) (State, error) {
	e := s.engine
	e.mu.Lock()
	if e.entries[s.ent.key] != s.ent {
		e.mu.Unlock()
		return State{Key: s.ent.key}, ErrReset
	}
	ch := e.startFetchLocked(s.ent, false)
	e.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return State{Key: s.ent.key}, res.Err
		}
		return res.Val.(State), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Close releases the subscription. It is safe to call more than once. An
// in-flight fetch is left running; only the subscriber count changes.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.engine.unsubscribe(s)
	})
}

func (e *Engine) unsubscribe(s *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent := s.ent
	if e.entries[ent.key] != ent {
		return
	}
	delete(ent.subs, s.id)
	e.updatePollerLocked(ent)
	if len(ent.subs) == 0 {
		e.armEvictionLocked(ent)
	}
	e.logger.Debug(context.Background(), "query unsubscribed",
		observe.F("key", ent.key), observe.F("subscribers", len(ent.subs)))
}

func (ent *entry) listenersLocked() []func(State) {
	var fns []func(State)
	for _, sub := range ent.subs {
		if sub.opts.OnChange != nil {
			fns = append(fns, sub.opts.OnChange)
		}
	}
	return fns
}

func (ent *entry) wantsReconnectLocked() bool {
	for _, sub := range ent.subs {
		if sub.opts.RefetchOnReconnect {
			return true
		}
	}
	return false
}

// updatePollerLocked runs one poller per entry at the shortest interval any
// subscriber asked for, and stops it when no subscriber wants polling.
func (e *Engine) updatePollerLocked(ent *entry) {
	var every time.Duration
	for _, sub := range ent.subs {
		d := e.policy.PollInterval(sub.opts.PollInterval)
		if d > 0 && (every == 0 || d < every) {
			every = d
		}
	}
	if every == ent.pollEvery {
		return
	}
	if ent.stopPoll != nil {
		ent.stopPoll()
		ent.stopPoll = nil
	}
	ent.pollEvery = every
	if every == 0 {
		return
	}

	ctx, cancel := context.WithCancel(e.session)
	ent.stopPoll = cancel
	go e.poll(ctx, ent, every)
}

func (e *Engine) poll(ctx context.Context, ent *entry, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			if ctx.Err() == nil && e.entries[ent.key] == ent && len(ent.subs) > 0 {
				e.startFetchLocked(ent, false)
			}
			e.mu.Unlock()
		}
	}
}

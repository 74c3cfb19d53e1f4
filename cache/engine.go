package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/salesync/observe"
	"github.com/jonwraymond/salesync/tags"
)

// ErrorHandler receives fetch failures after they are recorded on the entry.
type ErrorHandler func(ctx context.Context, key string, err error)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithKeyer overrides the query key derivation.
func WithKeyer(k Keyer) EngineOption {
	return func(e *Engine) {
		e.keyer = k
	}
}

// WithLogger sets the engine logger.
func WithLogger(l observe.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the engine metrics recorder.
func WithMetrics(m observe.CacheMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithErrorHandler registers a handler for fetch and mutation failures.
func WithErrorHandler(h ErrorHandler) EngineOption {
	return func(e *Engine) {
		e.onError = h
	}
}

// WithClock overrides the time source used for FetchedAt and staleness.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIndex sets the tag index the engine maintains.
func WithIndex(x *tags.Index) EngineOption {
	return func(e *Engine) {
		e.index = x
	}
}

// Engine is the query cache.
//
// Contract:
//   - Concurrency: safe for concurrent use. Callbacks run outside engine locks.
//   - Context: caller contexts bound how long a caller waits, never the fetch
//     itself; fetches run on the engine session and stop only on Reset.
//   - Errors: transport failures are recorded on the entry, not returned.
type Engine struct {
	mu      sync.Mutex
	entries map[string]*entry
	index   *tags.Index
	flight  singleflight.Group

	keyer   Keyer
	policy  Policy
	logger  observe.Logger
	metrics observe.CacheMetrics
	onError ErrorHandler
	now     func() time.Time

	// session is cancelled by Reset; every fetch and poller runs under it.
	session context.Context
	cancel  context.CancelFunc
	gen     uint64
	nextSub uint64
	closed  bool
}

type entry struct {
	key      string
	endpoint string
	fetch    FetchFunc
	provides func(any) []tags.Tag

	status    Status
	data      any
	err       error
	fetchedAt time.Time
	stale     bool
	fetching  bool

	fetchSeq   uint64
	appliedSeq uint64

	subs       map[uint64]*Subscription
	evictTimer *time.Timer
	evictSeq   uint64
	pollEvery  time.Duration
	stopPoll   context.CancelFunc
}

// NewEngine creates an Engine with the given policy.
func NewEngine(policy Policy, opts ...EngineOption) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		entries: make(map[string]*entry),
		policy:  policy,
		keyer:   NewDefaultKeyer(),
		logger:  observe.NopLogger(),
		metrics: observe.NopCacheMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.index == nil {
		e.index = tags.NewIndex()
	}
	e.session, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// Key returns the query key for q.
func (e *Engine) Key(q Query) (string, error) {
	if q.Endpoint == "" {
		return "", ErrInvalidQuery
	}
	return e.keyer.Key(q.Endpoint, q.Params)
}

// Read returns the cached state for q, fetching it when the entry is missing,
// stale, or failed. Concurrent reads of one key share a single fetch.
//
// The returned error is non-nil only when the key cannot be derived, the
// caller's context ends first, or the engine was reset mid-fetch. Fetch
// failures are reported through State.Status and State.Err.
func (e *Engine) Read(ctx context.Context, q Query) (State, error) {
	return e.read(ctx, q, false)
}

// Refetch fetches q regardless of freshness. An in-flight fetch is joined.
func (e *Engine) Refetch(ctx context.Context, q Query) (State, error) {
	return e.read(ctx, q, true)
}

func (e *Engine) read(ctx context.Context, q Query, force bool) (State, error) {
	if q.Fetch == nil {
		return State{}, ErrNilFetch
	}
	key, err := e.Key(q)
	if err != nil {
		return State{}, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return State{}, ErrClosed
	}
	ent := e.entryLocked(key, q)
	if !force && e.freshLocked(ent) {
		st := e.snapshotLocked(ent)
		e.mu.Unlock()
		e.metrics.RecordHit(ctx, q.Endpoint)
		return st, nil
	}
	ch := e.startFetchLocked(ent, false)
	e.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return State{Key: key, Endpoint: q.Endpoint}, res.Err
		}
		return res.Val.(State), nil
	case <-ctx.Done():
		return e.State(key), ctx.Err()
	}
}

// State returns a snapshot of the entry for key. Missing keys report
// StatusUninitialized.
func (e *Engine) State(key string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[key]
	if !ok {
		return State{Key: key}
	}
	return e.snapshotLocked(ent)
}

// Keys returns every cached key, sorted.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]string, 0, len(e.entries))
	for k := range e.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SubscriberCount returns the number of live subscriptions for key.
func (e *Engine) SubscriberCount(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.entries[key]; ok {
		return len(ent.subs)
	}
	return 0
}

// Index exposes the tag index the engine maintains.
func (e *Engine) Index() *tags.Index {
	return e.index
}

// Reset drops every entry, cancels in-flight fetches and pollers, and clears
// the tag index. Results of fetches started before Reset are discarded.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.session, e.cancel = context.WithCancel(context.Background())
	e.logger.Info(context.Background(), "query cache reset")
}

// Close resets the engine and rejects further reads and subscriptions.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.gen++
	e.cancel()
	for key, ent := range e.entries {
		e.stopTimersLocked(ent)
		e.flight.Forget(key)
	}
	e.entries = make(map[string]*entry)
	e.index.Reset()
}

func (e *Engine) entryLocked(key string, q Query) *entry {
	ent, ok := e.entries[key]
	if !ok {
		ent = &entry{
			key:      key,
			endpoint: q.Endpoint,
			subs:     make(map[uint64]*Subscription),
		}
		e.entries[key] = ent
		e.armEvictionLocked(ent)
	}
	// The latest definition wins so closures over fresh request state are used.
	if q.Fetch != nil {
		ent.fetch = q.Fetch
	}
	if q.Provides != nil {
		ent.provides = q.Provides
	}
	return ent
}

func (e *Engine) freshLocked(ent *entry) bool {
	if ent.status != StatusSuccess || ent.stale {
		return false
	}
	return !e.policy.Expired(ent.fetchedAt, e.now())
}

func (e *Engine) snapshotLocked(ent *entry) State {
	return State{
		Key:         ent.key,
		Endpoint:    ent.endpoint,
		Status:      ent.status,
		Data:        ent.data,
		Err:         ent.err,
		FetchedAt:   ent.fetchedAt,
		Stale:       ent.stale || (ent.status == StatusSuccess && e.policy.Expired(ent.fetchedAt, e.now())),
		Fetching:    ent.fetching,
		Subscribers: len(ent.subs),
	}
}

// startFetchLocked starts or joins the fetch for ent. When supersede is set,
// an in-flight fetch is abandoned so the new one observes later writes.
func (e *Engine) startFetchLocked(ent *entry, supersede bool) <-chan singleflight.Result {
	if supersede {
		e.flight.Forget(ent.key)
	}
	ent.fetching = true
	if ent.status == StatusUninitialized {
		ent.status = StatusLoading
	}

	gen := e.gen
	session := e.session
	return e.flight.DoChan(ent.key, func() (any, error) {
		return e.runFetch(session, gen, ent)
	})
}

func (e *Engine) runFetch(ctx context.Context, gen uint64, ent *entry) (any, error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return nil, ErrReset
	}
	ent.fetchSeq++
	seq := ent.fetchSeq
	ent.fetching = true
	fetch := ent.fetch
	e.mu.Unlock()

	data, err := fetch(ctx)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return nil, ErrReset
	}
	applied := e.applyLocked(ent, seq, data, err)
	if e.entries[ent.key] == ent && !ent.fetching {
		e.armEvictionLocked(ent)
	}
	st := e.snapshotLocked(ent)
	listeners := ent.listenersLocked()
	e.mu.Unlock()

	if !applied {
		return st, nil
	}
	if err != nil {
		e.logger.Warn(ctx, "query failed", observe.F("key", ent.key), observe.F("endpoint", ent.endpoint), observe.Err(err))
		e.reportError(ctx, ent.key, err)
	} else {
		e.logger.Debug(ctx, "query fetched", observe.F("key", ent.key), observe.F("endpoint", ent.endpoint))
	}
	for _, fn := range listeners {
		fn(st)
	}
	return st, nil
}

// applyLocked records a fetch result. Results older than the last applied one
// are dropped. Tags are only indexed while the entry is still cached.
func (e *Engine) applyLocked(ent *entry, seq uint64, data any, err error) bool {
	if seq == ent.fetchSeq {
		ent.fetching = false
	}
	if seq <= ent.appliedSeq {
		return false
	}
	ent.appliedSeq = seq

	if err != nil {
		ent.status = StatusError
		ent.err = err
		return true
	}

	ent.status = StatusSuccess
	ent.data = data
	ent.err = nil
	ent.fetchedAt = e.now()
	ent.stale = false

	if e.entries[ent.key] != ent {
		return true
	}
	var provided []tags.Tag
	if ent.provides != nil {
		provided = ent.provides(data)
	}
	if err := e.index.SetProvidedTags(ent.key, provided); err != nil {
		e.logger.Error(context.Background(), "query provided invalid tags",
			observe.F("key", ent.key), observe.F("invariant", true), observe.Err(err))
	}
	return true
}

func (e *Engine) armEvictionLocked(ent *entry) {
	if ent.evictTimer != nil || len(ent.subs) > 0 {
		return
	}
	ent.evictSeq++
	gen, seq := e.gen, ent.evictSeq
	ent.evictTimer = time.AfterFunc(e.policy.KeepUnusedFor, func() {
		e.evictIdle(gen, seq, ent)
	})
}

func (e *Engine) evictIdle(gen, seq uint64, ent *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || seq != ent.evictSeq || e.entries[ent.key] != ent {
		return
	}
	ent.evictTimer = nil
	// A fetch in flight re-arms the timer when it lands.
	if len(ent.subs) > 0 || ent.fetching {
		return
	}
	e.evictLocked(ent)
}

func (e *Engine) stopEvictionLocked(ent *entry) {
	if ent.evictTimer != nil {
		ent.evictTimer.Stop()
		ent.evictTimer = nil
	}
	ent.evictSeq++
}

func (e *Engine) evictLocked(ent *entry) {
	e.stopTimersLocked(ent)
	delete(e.entries, ent.key)
	e.index.Remove(ent.key)
	e.metrics.RecordEviction(context.Background(), ent.endpoint)
	e.logger.Debug(context.Background(), "query evicted", observe.F("key", ent.key))
}

func (e *Engine) stopTimersLocked(ent *entry) {
	e.stopEvictionLocked(ent)
	if ent.stopPoll != nil {
		ent.stopPoll()
		ent.stopPoll = nil
		ent.pollEvery = 0
	}
}

// checkIndexLocked removes index references to keys with no entry. Each one
// is a defect in the engine, logged as an invariant violation and returned
// for reporting once the lock is released.
func (e *Engine) checkIndexLocked(ctx context.Context, keys []string) ([]*entry, []error) {
	ents := make([]*entry, 0, len(keys))
	var violations []error
	for _, key := range keys {
		ent, ok := e.entries[key]
		if !ok {
			e.logger.Error(ctx, "tag index references missing cache entry",
				observe.F("key", key), observe.F("invariant", true))
			e.index.Remove(key)
			violations = append(violations, fmt.Errorf("%w: tag index references missing entry %q", ErrInvariant, key))
			continue
		}
		ents = append(ents, ent)
	}
	return ents, violations
}

func (e *Engine) reportError(ctx context.Context, key string, err error) {
	if e.onError == nil || err == nil || errors.Is(err, context.Canceled) {
		return
	}
	e.onError(ctx, key, err)
}

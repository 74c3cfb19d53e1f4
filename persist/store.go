package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/salesync/observe"
)

// Outcome describes how Load produced its slices.
type Outcome int

const (
	// OutcomeFirstRun means no snapshot existed; defaults were used.
	OutcomeFirstRun Outcome = iota + 1
	// OutcomeRestored means the snapshot was already at the current version.
	OutcomeRestored
	// OutcomeMigrated means the snapshot was upgraded to the current version.
	OutcomeMigrated
	// OutcomeFallback means the snapshot could not be upgraded; defaults were used.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstRun:
		return "first_run"
	case OutcomeRestored:
		return "restored"
	case OutcomeMigrated:
		return "migrated"
	case OutcomeFallback:
		return "migration_failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Load.
type Result struct {
	Slices      map[string]json.RawMessage
	Outcome     Outcome
	FromVersion int

	// Err is the migration error behind OutcomeFallback.
	Err error
}

// Decode unmarshals the named slice into v and reports whether it existed.
func (r Result) Decode(name string, v any) (bool, error) {
	raw, ok := r.Slices[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("persist: decode slice %q: %w", name, err)
	}
	return true, nil
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSchema sets the running schema version and the chain leading to it.
func WithSchema(version int, migrations Migrations) StoreOption {
	return func(s *Store) {
		s.version = version
		s.migrations = migrations
	}
}

// WithWhitelist replaces the set of slice names that may be persisted.
func WithWhitelist(names ...string) StoreOption {
	return func(s *Store) {
		s.allowed = make(map[string]struct{}, len(names))
		for _, n := range names {
			s.allowed[n] = struct{}{}
		}
	}
}

// WithDefaults sets the slices used on first run and after a failed migration.
func WithDefaults(fn func() map[string]json.RawMessage) StoreOption {
	return func(s *Store) {
		s.defaults = fn
	}
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(l observe.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// Store loads, migrates and saves snapshots through a Backend.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Load never fails because of snapshot contents; only backend I/O errors
//   are returned.
// - Save persists whitelisted slices only; others are dropped silently.
type Store struct {
	backend    Backend
	version    int
	migrations Migrations
	allowed    map[string]struct{}
	defaults   func() map[string]json.RawMessage
	logger     observe.Logger

	mu   sync.Mutex
	last []byte
}

// NewStore creates a Store. Without options it runs the application schema:
// CurrentSchemaVersion, AppMigrations, Whitelist and AppDefaults.
func NewStore(backend Backend, opts ...StoreOption) (*Store, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	s := &Store{
		backend:    backend,
		version:    CurrentSchemaVersion,
		migrations: AppMigrations(),
		defaults:   AppDefaults,
		logger:     observe.NopLogger(),
	}
	WithWhitelist(Whitelist()...)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.version < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, s.version)
	}
	return s, nil
}

// SchemaVersion returns the running schema version.
func (s *Store) SchemaVersion() int {
	return s.version
}

// Allowed reports whether name is a persisted slice.
func (s *Store) Allowed(name string) bool {
	_, ok := s.allowed[name]
	return ok
}

// Load reads the snapshot and brings it to the running schema version.
func (s *Store) Load(ctx context.Context) (Result, error) {
	snap, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info(ctx, "no persisted snapshot, using defaults",
			observe.F("reason", OutcomeFirstRun.String()),
			observe.F("schema_version", s.version))
		return Result{Slices: s.defaultSlices(), Outcome: OutcomeFirstRun}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("persist: load: %w", err)
	}

	migrated, err := s.migrations.Run(snap.Slices, snap.SchemaVersion, s.version)
	if err != nil {
		s.logger.Warn(ctx, "persisted snapshot could not be migrated, using defaults",
			observe.F("reason", OutcomeFallback.String()),
			observe.F("from_version", snap.SchemaVersion),
			observe.F("schema_version", s.version),
			observe.Err(err))
		return Result{
			Slices:      s.defaultSlices(),
			Outcome:     OutcomeFallback,
			FromVersion: snap.SchemaVersion,
			Err:         err,
		}, nil
	}

	kept, dropped := filterSlices(migrated, s.allowed)
	if len(dropped) > 0 {
		slices.Sort(dropped)
		s.logger.Debug(ctx, "dropped slices outside whitelist", observe.F("slices", dropped))
	}

	res := Result{Slices: kept, Outcome: OutcomeRestored, FromVersion: snap.SchemaVersion}
	if snap.SchemaVersion < s.version {
		res.Outcome = OutcomeMigrated
		s.logger.Info(ctx, "persisted snapshot migrated",
			observe.F("from_version", snap.SchemaVersion),
			observe.F("schema_version", s.version))
	} else if payload, err := json.Marshal(Snapshot{SchemaVersion: s.version, Slices: kept}); err == nil {
		s.mu.Lock()
		s.last = payload
		s.mu.Unlock()
	}
	return res, nil
}

// Save writes the whitelisted entries of state at the running schema
// version. Values are encoded as JSON; json.RawMessage is stored verbatim.
func (s *Store) Save(ctx context.Context, state map[string]any) error {
	_, err := s.save(ctx, state, true)
	return err
}

// Clear removes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Clear(ctx); err != nil {
		return err
	}
	s.last = nil
	return nil
}

// Autosave saves source() every interval while ctx is live, skipping writes
// whose payload has not changed, and saves once more when ctx ends. It
// returns the error of the final save.
func (s *Store) Autosave(ctx context.Context, interval time.Duration, source func() map[string]any) error {
	if interval <= 0 {
		return errors.New("persist: autosave interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.save(ctx, source(), false); err != nil {
				s.logger.Warn(ctx, "autosave failed", observe.Err(err))
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_, err := s.save(final, source(), false)
			return err
		}
	}
}

func (s *Store) save(ctx context.Context, state map[string]any, force bool) (bool, error) {
	snap := Snapshot{SchemaVersion: s.version, Slices: make(map[string]json.RawMessage, len(state))}
	var dropped []string
	for name, v := range state {
		if !s.Allowed(name) {
			dropped = append(dropped, name)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return false, fmt.Errorf("persist: encode slice %q: %w", name, err)
		}
		snap.Slices[name] = raw
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		s.logger.Debug(ctx, "dropped slices outside whitelist", observe.F("slices", dropped))
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("persist: encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !force && bytes.Equal(payload, s.last) {
		return false, nil
	}
	if err := s.backend.Save(ctx, snap); err != nil {
		return false, fmt.Errorf("persist: save: %w", err)
	}
	s.last = payload
	return true, nil
}

func (s *Store) defaultSlices() map[string]json.RawMessage {
	if s.defaults == nil {
		return map[string]json.RawMessage{}
	}
	kept, _ := filterSlices(s.defaults(), s.allowed)
	return kept
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/salesync/alerts"
	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/config"
	"github.com/jonwraymond/salesync/health"
	"github.com/jonwraymond/salesync/notification"
	"github.com/jonwraymond/salesync/observe"
	"github.com/jonwraymond/salesync/persist"
	"github.com/jonwraymond/salesync/resilience"
	"github.com/jonwraymond/salesync/sales"
	"github.com/jonwraymond/salesync/session"
	"github.com/jonwraymond/salesync/transport"
)

// Errors returned by Client.
var (
	ErrUnknownSlice = errors.New("client: slice is not persisted")
	ErrClosed       = errors.New("client: closed")
)

// Option configures New.
type Option func(*options)

type options struct {
	presenter  alerts.Presenter
	httpClient *http.Client
	backend    persist.Backend
	claims     session.ClaimNames
}

// WithPresenter sets where user-facing alerts are shown.
func WithPresenter(p alerts.Presenter) Option {
	return func(o *options) {
		o.presenter = p
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithBackend overrides the snapshot backend selected by the configuration.
// The caller keeps ownership of b.
func WithBackend(b persist.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithClaimNames selects which token claims populate the session identity.
func WithClaimNames(names session.ClaimNames) Option {
	return func(o *options) {
		o.claims = names
	}
}

// Client is the assembled sync core.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Persisted state: the session token and the whitelisted preference slices
//   are saved by Run's autosave loop, on Login and Logout, and by Close.
// - Logout drops every cache entry; subscriptions opened before it stop
//   receiving updates.
type Client struct {
	cfg    config.Config
	obs    observe.Observer
	logger observe.Logger

	session *session.Store
	api     *sales.API
	engine  *cache.Engine
	store   *persist.Store
	backend persist.Backend
	closer  io.Closer
	alerts  *alerts.Middleware
	health  *health.Aggregator
	conn    *health.Connectivity
	loaded  persist.Result

	mu     sync.Mutex
	slices map[string]json.RawMessage
	closed bool
}

// New assembles a Client from cfg and restores the persisted snapshot.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("client: observer: %w", err)
	}
	c := &Client{
		cfg:     cfg,
		obs:     obs,
		logger:  obs.Logger(),
		session: session.NewStore(o.claims),
		slices:  make(map[string]json.RawMessage),
	}

	if err := c.assemble(ctx, o); err != nil {
		_ = c.shutdown(ctx)
		return nil, err
	}
	if err := c.restore(ctx); err != nil {
		_ = c.shutdown(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Client) assemble(ctx context.Context, o options) error {
	mw, err := observe.MiddlewareFromObserver(c.obs)
	if err != nil {
		return fmt.Errorf("client: middleware: %w", err)
	}
	metrics, err := observe.NewCacheMetrics(c.obs.Meter())
	if err != nil {
		return fmt.Errorf("client: metrics: %w", err)
	}

	exec := resilience.NewExecutor(
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: c.cfg.MaxConcurrentRequests,
		})),
		resilience.WithTimeout(c.cfg.RequestTimeout),
	)
	topts := []transport.Option{
		transport.WithSession(c.session),
		transport.WithExecutor(exec),
		transport.WithMiddleware(mw),
		transport.WithLogger(c.logger),
		transport.WithUserAgent(c.cfg.UserAgent),
	}
	if o.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(o.httpClient))
	}
	tc, err := transport.New(c.cfg.APIBaseURL, topts...)
	if err != nil {
		return err
	}
	c.api = sales.NewAPI(tc)

	c.alerts = alerts.New(o.presenter, alerts.WithLogger(c.logger))
	c.engine, err = cache.NewEngine(c.cfg.CachePolicy(),
		cache.WithLogger(c.logger),
		cache.WithMetrics(metrics),
		cache.WithErrorHandler(c.alerts.Handler()),
	)
	if err != nil {
		return err
	}

	c.backend = o.backend
	if c.backend == nil {
		if c.backend, c.closer, err = openBackend(ctx, c.cfg); err != nil {
			return err
		}
	}
	c.store, err = persist.NewStore(c.backend,
		persist.WithSchema(c.cfg.Schema(), persist.AppMigrations()),
		persist.WithStoreLogger(c.logger),
	)
	if err != nil {
		return err
	}

	apiChecker := health.NewAPIChecker(tc, c.cfg.HealthPath)
	c.health = health.NewAggregator(health.AggregatorConfig{Timeout: c.cfg.RequestTimeout})
	if err := c.health.Register(apiChecker); err != nil {
		return err
	}
	if err := c.health.Register(health.NewBackendChecker(c.backend)); err != nil {
		return err
	}
	c.conn, err = health.NewConnectivity(apiChecker,
		health.WithInterval(c.cfg.ConnectivityInterval),
		health.OnReconnect(c.engine.Reconnected),
		health.WithConnectivityLogger(c.logger),
	)
	return err
}

func openBackend(ctx context.Context, cfg config.Config) (persist.Backend, io.Closer, error) {
	switch cfg.SnapshotBackend {
	case config.BackendSQLite:
		b, err := persist.OpenSQLite(ctx, cfg.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.BackendValkey:
		b, err := persist.DialValkey(ctx, cfg.ValkeyOptions())
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		return persist.NewMemoryBackend(), nil, nil
	}
}

// restore loads the snapshot and applies the session slice.
func (c *Client) restore(ctx context.Context) error {
	res, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.loaded = res
	if res.Outcome == persist.OutcomeFallback {
		c.alerts.Report(ctx, "persist", res.Err)
	}

	c.mu.Lock()
	for name, raw := range res.Slices {
		if name != persist.SliceSession {
			c.slices[name] = raw
		}
	}
	c.mu.Unlock()

	if raw, ok := res.Slices[persist.SliceSession]; ok {
		if err := c.session.Restore(raw); err != nil {
			c.logger.Warn(ctx, "persisted session dropped", observe.Err(err))
		}
	}
	c.logger.Info(ctx, "client ready",
		observe.F("outcome", res.Outcome.String()),
		observe.F("signed_in", c.session.Token() != ""))
	return nil
}

// Engine returns the query cache.
func (c *Client) Engine() *cache.Engine { return c.engine }

// API returns the sales endpoints.
func (c *Client) API() *sales.API { return c.api }

// Session returns the token store.
func (c *Client) Session() *session.Store { return c.session }

// Alerts returns the error reporting middleware.
func (c *Client) Alerts() *alerts.Middleware { return c.alerts }

// Health returns the registered health checks.
func (c *Client) Health() *health.Aggregator { return c.health }

// Online reports the last observed API reachability.
func (c *Client) Online() bool { return c.conn.Online() }

// Loaded returns how the persisted snapshot was restored by New.
func (c *Client) Loaded() persist.Outcome { return c.loaded.Outcome }

// Slice decodes the persisted slice name into v and reports whether it exists.
func (c *Client) Slice(name string, v any) (bool, error) {
	if name == persist.SliceSession || !c.store.Allowed(name) {
		return false, fmt.Errorf("%w: %q", ErrUnknownSlice, name)
	}
	c.mu.Lock()
	raw, ok := c.slices[name]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// SetSlice replaces the persisted slice name. It is written by the next save.
func (c *Client) SetSlice(name string, v any) error {
	if name == persist.SliceSession || !c.store.Allowed(name) {
		return fmt.Errorf("%w: %q", ErrUnknownSlice, name)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("client: encode slice %q: %w", name, err)
	}
	c.mu.Lock()
	c.slices[name] = raw
	c.mu.Unlock()
	return nil
}

// QueryPrefs returns the persisted list preferences stored under name.
func (c *Client) QueryPrefs(name string) (persist.QueryPrefs, error) {
	var p persist.QueryPrefs
	_, err := c.Slice(name, &p)
	return p, err
}

// state is the snapshot source for every save.
func (c *Client) state() map[string]any {
	c.mu.Lock()
	out := make(map[string]any, len(c.slices)+1)
	for name, raw := range c.slices {
		out[name] = raw
	}
	c.mu.Unlock()
	if c.session.Token() != "" {
		out[persist.SliceSession] = c.session
	}
	return out
}

// Save writes the current state to the snapshot backend.
func (c *Client) Save(ctx context.Context) error {
	return c.store.Save(ctx, c.state())
}

// Login stores token for subsequent requests and saves the session. The
// returned Identity is nil when token is not a JWT.
func (c *Client) Login(ctx context.Context, token string) (*session.Identity, error) {
	id, err := c.session.Set(token)
	if err != nil {
		return nil, err
	}
	if id != nil {
		c.logger.Info(ctx, "signed in", observe.F("principal", id.Principal), observe.F("dealer", id.DealerID))
	} else {
		c.logger.Info(ctx, "signed in with opaque token")
	}
	if err := c.Save(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// Logout clears the token, drops every cache entry, dismisses the outstanding
// alert and saves the state without a session.
func (c *Client) Logout(ctx context.Context) error {
	c.session.Clear()
	c.engine.Reset()
	c.alerts.Dismiss()
	c.logger.Info(ctx, "signed out")
	return c.Save(ctx)
}

// Notify decodes a push notification payload and invalidates what it names.
func (c *Client) Notify(ctx context.Context, raw []byte) (cache.InvalidationResult, error) {
	n, err := notification.Decode(raw)
	if err != nil {
		c.logger.Warn(ctx, "notification dropped", observe.Err(err))
		return cache.InvalidationResult{}, err
	}
	return notification.Apply(ctx, c.engine, n)
}

// CheckHealth runs every registered health check.
func (c *Client) CheckHealth(ctx context.Context) (health.Status, map[string]health.Result) {
	results := c.health.CheckAll(ctx)
	return health.Overall(results), results
}

// Run autosaves and probes connectivity until ctx ends. It returns the error
// of the final save.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.conn.Run(gctx); gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return c.store.Autosave(gctx, c.cfg.AutosaveInterval, c.state)
	})
	return g.Wait()
}

// Close saves the state once more and releases the engine, the backend and
// the telemetry providers. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.Save(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) shutdown(ctx context.Context) error {
	var errs []error
	if c.engine != nil {
		c.engine.Close()
	}
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	if err := c.obs.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Package config loads the sync core configuration from SALESYNC_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/observe"
	"github.com/jonwraymond/salesync/persist"
)

// Prefix is prepended to every variable name.
const Prefix = "SALESYNC_"

// Snapshot backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
)

// Sentinel errors for validation.
var (
	ErrMissingBaseURL  = errors.New("config: API base URL is required")
	ErrInvalidBaseURL  = errors.New("config: API base URL must be an absolute http(s) URL")
	ErrInvalidBackend  = errors.New("config: unknown snapshot backend")
	ErrMissingSnapshot = errors.New("config: snapshot backend needs a location")
	ErrInvalidLimit    = errors.New("config: value must be positive")
)

// Config is the runtime configuration of a sync client.
type Config struct {
	APIBaseURL            string        `env:"API_BASE_URL,required"`
	UserAgent             string        `env:"USER_AGENT" envDefault:"salesync"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	MaxConcurrentRequests int           `env:"MAX_CONCURRENT_REQUESTS" envDefault:"6"`

	SchemaVersion int `env:"SCHEMA_VERSION"`

	KeepUnusedFor       time.Duration `env:"KEEP_UNUSED_FOR" envDefault:"60s"`
	StaleAfter          time.Duration `env:"STALE_AFTER"`
	DefaultPollInterval time.Duration `env:"DEFAULT_POLL_INTERVAL"`

	SnapshotBackend  string        `env:"SNAPSHOT_BACKEND" envDefault:"memory"`
	SnapshotPath     string        `env:"SNAPSHOT_PATH"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"30s"`
	Valkey           ValkeyConfig  `envPrefix:"VALKEY_"`

	HealthPath           string        `env:"HEALTH_PATH" envDefault:"/health"`
	ConnectivityInterval time.Duration `env:"CONNECTIVITY_INTERVAL" envDefault:"15s"`

	Observe observe.Config `envPrefix:"OBSERVE_"`
}

// ValkeyConfig addresses the Valkey snapshot backend.
type ValkeyConfig struct {
	Address  string `env:"ADDRESS"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	Prefix   string `env:"PREFIX" envDefault:"salesync"`
}

// Load parses the environment, expands ${VAR} references in location
// fields and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.expand(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) expand() error {
	for _, field := range []*string{&c.APIBaseURL, &c.SnapshotPath, &c.Valkey.Address, &c.Valkey.Password} {
		expanded, err := ExpandEnvStrict(*field)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		*field = expanded
	}
	return nil
}

// Validate checks the URL, backend and limits.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.APIBaseURL)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("%w: max concurrent requests %d", ErrInvalidLimit, c.MaxConcurrentRequests)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout %s", ErrInvalidLimit, c.RequestTimeout)
	}
	if c.AutosaveInterval <= 0 {
		return fmt.Errorf("%w: autosave interval %s", ErrInvalidLimit, c.AutosaveInterval)
	}
	if c.SchemaVersion < 0 {
		return fmt.Errorf("%w: schema version %d", ErrInvalidLimit, c.SchemaVersion)
	}
	if err := c.CachePolicy().Validate(); err != nil {
		return err
	}
	if err := c.Observe.Validate(); err != nil {
		return err
	}

	switch c.SnapshotBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SnapshotPath == "" {
			return fmt.Errorf("%w: %s requires SNAPSHOT_PATH", ErrMissingSnapshot, c.SnapshotBackend)
		}
	case BackendValkey:
		if c.Valkey.Address == "" {
			return fmt.Errorf("%w: %s requires VALKEY_ADDRESS", ErrMissingSnapshot, c.SnapshotBackend)
		}
	default:
		return fmt.Errorf("%w: %q (want one of %v)", ErrInvalidBackend, c.SnapshotBackend, Backends())
	}
	return nil
}

// Backends lists the accepted SnapshotBackend values.
func Backends() []string {
	return []string{BackendMemory, BackendSQLite, BackendValkey}
}

// CachePolicy returns the cache engine policy.
func (c Config) CachePolicy() cache.Policy {
	return cache.Policy{
		KeepUnusedFor:       c.KeepUnusedFor,
		StaleAfter:          c.StaleAfter,
		DefaultPollInterval: c.DefaultPollInterval,
	}
}

// Schema returns the persisted schema version, defaulting to the current one.
func (c Config) Schema() int {
	if c.SchemaVersion == 0 {
		return persist.CurrentSchemaVersion
	}
	return c.SchemaVersion
}

// ValkeyOptions converts the Valkey settings for persist.DialValkey.
func (c Config) ValkeyOptions() persist.ValkeyConfig {
	return persist.ValkeyConfig{
		Address:  c.Valkey.Address,
		Username: c.Valkey.Username,
		Password: c.Valkey.Password,
		DB:       c.Valkey.DB,
		Prefix:   c.Valkey.Prefix,
	}
}

package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyConfig addresses a Valkey (or Redis) server.
type ValkeyConfig struct {
	Address  string
	Username string
	Password string
	DB       int

	// Prefix namespaces the snapshot keys. Defaults to "salesync".
	Prefix string
}

// ValkeyBackend stores the snapshot as a hash of slice blobs under
// <prefix>:slices and the schema version under <prefix>:schemaVersion.
type ValkeyBackend struct {
	client valkey.Client
	prefix string
}

// DialValkey connects to the server in cfg and pings it.
func DialValkey(ctx context.Context, cfg ValkeyConfig) (*ValkeyBackend, error) {
	if cfg.Address == "" {
		return nil, errors.New("persist: valkey address required")
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("persist: valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("persist: valkey ping: %w", err)
	}
	return NewValkeyBackend(client, cfg.Prefix), nil
}

// NewValkeyBackend wraps an existing client.
func NewValkeyBackend(client valkey.Client, prefix string) *ValkeyBackend {
	if prefix == "" {
		prefix = "salesync"
	}
	return &ValkeyBackend{client: client, prefix: prefix}
}

// Close closes the client.
func (b *ValkeyBackend) Close() error {
	b.client.Close()
	return nil
}

func (b *ValkeyBackend) slicesKey() string  { return b.prefix + ":slices" }
func (b *ValkeyBackend) versionKey() string { return b.prefix + ":schemaVersion" }

// Load implements Backend.
func (b *ValkeyBackend) Load(ctx context.Context) (Snapshot, error) {
	resp := b.client.Do(ctx, b.client.B().Get().Key(b.versionKey()).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("persist: valkey get version: %w", err)
	}
	raw, err := resp.ToString()
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: valkey version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: valkey version %q: %w", raw, err)
	}

	fields, err := b.client.Do(ctx, b.client.B().Hgetall().Key(b.slicesKey()).Build()).AsStrMap()
	if err != nil && !errors.Is(err, valkey.Nil) {
		return Snapshot{}, fmt.Errorf("persist: valkey get slices: %w", err)
	}

	snap := Snapshot{SchemaVersion: version, Slices: make(map[string]json.RawMessage, len(fields))}
	for name, payload := range fields {
		snap.Slices[name] = json.RawMessage(payload)
	}
	return snap, nil
}

// Save implements Backend. The snapshot is replaced in one MULTI/EXEC block.
func (b *ValkeyBackend) Save(ctx context.Context, s Snapshot) error {
	return b.client.Dedicated(func(c valkey.DedicatedClient) error {
		cmds := []valkey.Completed{
			c.B().Multi().Build(),
			c.B().Del().Key(b.slicesKey()).Build(),
		}
		if len(s.Slices) > 0 {
			fv := c.B().Hset().Key(b.slicesKey()).FieldValue()
			for name, raw := range s.Slices {
				fv = fv.FieldValue(name, string(raw))
			}
			cmds = append(cmds, fv.Build())
		}
		cmds = append(cmds,
			c.B().Set().Key(b.versionKey()).Value(strconv.Itoa(s.SchemaVersion)).Build(),
			c.B().Exec().Build(),
		)
		for _, resp := range c.DoMulti(ctx, cmds...) {
			if err := resp.Error(); err != nil {
				return fmt.Errorf("persist: valkey save: %w", err)
			}
		}
		return nil
	})
}

// Clear implements Backend.
func (b *ValkeyBackend) Clear(ctx context.Context) error {
	cmd := b.client.B().Del().Key(b.slicesKey(), b.versionKey()).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("persist: valkey clear: %w", err)
	}
	return nil
}

var _ Backend = (*ValkeyBackend)(nil)

package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshot_meta (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		saved_at       INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snapshot_slices (
		name    TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
}

// SQLiteBackend stores the snapshot in a SQLite file, one row per slice.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the snapshot database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("persist: sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: ping sqlite: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("persist: create sqlite schema: %w", err)
		}
	}
	return &SQLiteBackend{db: db, now: time.Now}, nil
}

// Close releases the database.
func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := b.db.QueryRowContext(ctx,
		`SELECT schema_version FROM snapshot_meta WHERE id = 1`,
	).Scan(&snap.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: read sqlite meta: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, `SELECT name, payload FROM snapshot_slices`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: read sqlite slices: %w", err)
	}
	defer rows.Close()

	snap.Slices = make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return Snapshot{}, fmt.Errorf("persist: scan sqlite slice: %w", err)
		}
		snap.Slices[name] = json.RawMessage(payload)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("persist: read sqlite slices: %w", err)
	}
	return snap, nil
}

// Save implements Backend. The snapshot is replaced in one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, s Snapshot) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin sqlite tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM snapshot_slices`); err != nil {
		return fmt.Errorf("persist: clear sqlite slices: %w", err)
	}
	for name, raw := range s.Slices {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_slices (name, payload) VALUES (?, ?)`,
			name, []byte(raw),
		); err != nil {
			return fmt.Errorf("persist: write sqlite slice %q: %w", name, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, schema_version, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version, saved_at = excluded.saved_at`,
		s.SchemaVersion, b.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("persist: write sqlite meta: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit sqlite tx: %w", err)
	}
	return nil
}

// Clear implements Backend.
func (b *SQLiteBackend) Clear(ctx context.Context) error {
	for _, table := range []string{"snapshot_slices", "snapshot_meta"} {
		if _, err := b.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("persist: clear sqlite %s: %w", table, err)
		}
	}
	return nil
}

var _ Backend = (*SQLiteBackend)(nil)

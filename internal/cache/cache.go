// Package cache keeps the last successfully loaded payload per user and
// resource in SQLite, so fallback chains have something better than a
// hard-coded default when the API is unreachable.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/destinyjobs/portal/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS last_known (
	user_id    TEXT NOT NULL,
	resource   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, resource)
);

CREATE INDEX IF NOT EXISTS idx_last_known_updated ON last_known(updated_at);
`

// Store is the subset of DB the service depends on.
type Store interface {
	Put(ctx context.Context, userID, resource string, v any) error
	Get(ctx context.Context, userID, resource string, out any) (time.Time, error)
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB holding last-known-good payloads.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Put stores v as the latest payload for (userID, resource).
func (db *DB) Put(ctx context.Context, userID, resource string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", resource, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO last_known (user_id, resource, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, resource) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, userID, resource, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", resource, err)
	}
	return nil
}

// Get decodes the stored payload into out and returns when it was stored.
// It returns apperr.ErrNotFound when nothing is cached.
func (db *DB) Get(ctx context.Context, userID, resource string, out any) (time.Time, error) {
	var payload string
	var updated time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM last_known WHERE user_id = ? AND resource = ?`,
		userID, resource).Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, apperr.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("cache: get %s: %w", resource, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return time.Time{}, fmt.Errorf("cache: decode %s: %w", resource, err)
	}
	return updated, nil
}

// Prune removes payloads older than maxAge and returns how many went.
func (db *DB) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM last_known WHERE updated_at < ?`, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	return res.RowsAffected()
}

// Package replica is the client's local copy of the server data. Every row
// carries a synced flag and the server version it was last reconciled
// against, so edits made offline survive until they are pushed.
package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Meta keys.
const (
	MetaServerURL     = "server_url"
	MetaSessionCookie = "session_cookie"
	MetaUserID        = "user_id"
	MetaLastSync      = "last_sync"
)

// ErrNotInitialized is returned by Load when the replica file does not exist.
var ErrNotInitialized = errors.New("replica not initialized, run 'habitsync init' first")

// ErrHabitNotFound is returned for habit ids the replica does not hold.
var ErrHabitNotFound = errors.New("habit not found")

// ErrNotLoggedIn is returned when an operation needs the replica's user.
var ErrNotLoggedIn = errors.New("not logged in, run 'habitsync login' first")

// Store is a replica backed by a single sqlite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the replica file if needed and brings its schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return open(ctx, path)
}

// Load opens an existing replica.
func Load(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotInitialized
	}
	return open(ctx, path)
}

func open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open replica: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the replica file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			success_limit INTEGER NOT NULL,
			failure_limit INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS habits (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			frequency TEXT NOT NULL,
			is_current INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			base_version TEXT NULL,
			synced INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS habit_completions (
			habit_id INTEGER NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			date TEXT NOT NULL CHECK (date GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]'),
			status INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL,
			base_version TEXT NULL,
			synced INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (habit_id, date)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_completions_date ON habit_completions(date);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate replica: %w", err)
		}
	}
	return nil
}

// Meta returns a meta value, or "" when unset.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a meta value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// DeleteMeta removes meta values.
func (s *Store) DeleteMeta(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

// UserID returns the id of the logged-in user.
func (s *Store) UserID(ctx context.Context) (uint64, error) {
	raw, err := s.Meta(ctx, MetaUserID)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, ErrNotLoggedIn
	}
	var id uint64
	if _, err := fmt.Sscan(raw, &id); err != nil {
		return 0, fmt.Errorf("corrupt user id %q: %w", raw, err)
	}
	return id, nil
}

// LastSync returns the server time of the last completed sync.
func (s *Store) LastSync(ctx context.Context) (time.Time, error) {
	raw, err := s.Meta(ctx, MetaLastSync)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	return parseTime(raw)
}

// Reset removes all replicated rows. Meta is left alone.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM habit_completions`,
		`DELETE FROM habits`,
		`DELETE FROM users`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset replica: %w", err)
		}
	}
	return tx.Commit()
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

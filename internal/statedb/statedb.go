// Package statedb is the SQLite-backed durable store for one profile: a
// string key/value table for persisted tab state plus process heartbeats
// used to elect a single writer.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is written to metadata by Migrate.
const SchemaVersion = 1

// StateDB is safe for concurrent use. Several processes may share one file;
// WAL mode and a busy timeout serialise their writes.
type StateDB struct {
	db  *sql.DB
	pid int
}

// Open creates or opens the database at path.
func Open(path string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}
	// Pragmas in the DSN apply to every pooled connection, not just the first.
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: ping: %w", err)
	}
	return &StateDB{db: db, pid: os.Getpid()}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *StateDB) DB() *sql.DB {
	return s.db
}

// Migrate creates missing tables.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct{ name, sql string }{
		{"metadata", `
			CREATE TABLE IF NOT EXISTS metadata (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`},
		{"kv", `
			CREATE TABLE IF NOT EXISTS kv (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`},
		{"heartbeats", `
			CREATE TABLE IF NOT EXISTS instance_heartbeats (
				pid        INTEGER PRIMARY KEY,
				started    INTEGER NOT NULL,
				heartbeat  INTEGER NOT NULL,
				is_primary INTEGER NOT NULL DEFAULT 0
			)`},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.sql); err != nil {
			return fmt.Errorf("statedb: create %s: %w", st.name, err)
		}
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)",
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}
	return tx.Commit()
}

// --- Key/value ---

// Get returns the value stored under key. ok is false when the key is absent.
func (s *StateDB) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("statedb: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key and bumps last_modified.
func (s *StateDB) Set(ctx context.Context, key, value string) error {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statedb: begin set: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, now.UnixNano(),
	); err != nil {
		return fmt.Errorf("statedb: set %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('last_modified', ?)",
		strconv.FormatInt(now.UnixNano(), 10),
	); err != nil {
		return fmt.Errorf("statedb: touch: %w", err)
	}
	return tx.Commit()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *StateDB) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("statedb: delete %q: %w", key, err)
	}
	return nil
}

// UpdatedAt returns when key was last written, or the zero time if absent.
func (s *StateDB) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx, "SELECT updated_at FROM kv WHERE key = ?", key).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("statedb: updated_at %q: %w", key, err)
	}
	return time.Unix(0, ns), nil
}

// --- Heartbeat ---

// RegisterInstance records this process as alive.
func (s *StateDB) RegisterInstance(isPrimary bool) error {
	now := time.Now().Unix()
	primary := 0
	if isPrimary {
		primary = 1
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO instance_heartbeats (pid, started, heartbeat, is_primary)
		VALUES (?, ?, ?, ?)
	`, s.pid, now, now, primary)
	return err
}

// Heartbeat refreshes this process's timestamp.
func (s *StateDB) Heartbeat() error {
	_, err := s.db.Exec(
		"UPDATE instance_heartbeats SET heartbeat = ? WHERE pid = ?",
		time.Now().Unix(), s.pid,
	)
	return err
}

// UnregisterInstance removes this process from the heartbeat table.
func (s *StateDB) UnregisterInstance() error {
	_, err := s.db.Exec("DELETE FROM instance_heartbeats WHERE pid = ?", s.pid)
	return err
}

// CleanDeadInstances drops heartbeats older than timeout.
func (s *StateDB) CleanDeadInstances(timeout time.Duration) error {
	cutoff := time.Now().Add(-timeout).Unix()
	_, err := s.db.Exec("DELETE FROM instance_heartbeats WHERE heartbeat < ?", cutoff)
	return err
}

// AliveInstanceCount counts processes with a heartbeat newer than timeout.
func (s *StateDB) AliveInstanceCount(timeout time.Duration) (int, error) {
	var n int
	cutoff := time.Now().Add(-timeout).Unix()
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM instance_heartbeats WHERE heartbeat >= ?", cutoff,
	).Scan(&n)
	return n, err
}

// ElectPrimary makes this process the primary unless another live process
// already is. Primaries whose heartbeat is older than timeout are demoted
// first. It reports whether this process is primary afterwards.
func (s *StateDB) ElectPrimary(timeout time.Duration) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("statedb: begin elect: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := time.Now().Add(-timeout).Unix()
	if _, err := tx.Exec(
		"UPDATE instance_heartbeats SET is_primary = 0 WHERE is_primary = 1 AND heartbeat < ?",
		cutoff,
	); err != nil {
		return false, fmt.Errorf("statedb: demote stale primary: %w", err)
	}

	var holder int
	err = tx.QueryRow(
		"SELECT pid FROM instance_heartbeats WHERE is_primary = 1 AND heartbeat >= ? LIMIT 1",
		cutoff,
	).Scan(&holder)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("statedb: commit elect: %w", err)
		}
		return holder == s.pid, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("statedb: find primary: %w", err)
	}

	res, err := tx.Exec("UPDATE instance_heartbeats SET is_primary = 1 WHERE pid = ?", s.pid)
	if err != nil {
		return false, fmt.Errorf("statedb: claim primary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// not registered
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("statedb: commit elect: %w", err)
	}
	return true, nil
}

// ResignPrimary gives up the primary role.
func (s *StateDB) ResignPrimary() error {
	_, err := s.db.Exec("UPDATE instance_heartbeats SET is_primary = 0 WHERE pid = ?", s.pid)
	return err
}

// --- Metadata ---

// SetMeta writes an internal metadata value.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta reads an internal metadata value, "" when unset.
func (s *StateDB) GetMeta(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// Touch bumps last_modified so other processes polling LastModified notice
// a change.
func (s *StateDB) Touch() error {
	return s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10))
}

// LastModified returns the last_modified stamp in nanoseconds, 0 if unset.
func (s *StateDB) LastModified() (int64, error) {
	v, err := s.GetMeta("last_modified")
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

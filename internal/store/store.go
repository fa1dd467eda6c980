// Package store is the local relational store for process records,
// improvement-journal entries, the audit log and per-process sync leases.
//
// The database is an embedded SQLite file opened in WAL mode so the CLI,
// the import watcher and the dashboard can read while a sync writes.
//
// Tables:
//   - processes: content fields plus the sync fields written back by the
//     engine (remote project id/url, workspace, remote task ids as JSON)
//   - journal_entries: improvement journal, remote_task_url marks backfill
//   - audit_log: append-only sync summaries
//   - sync_locks: advisory leases, one row per process being synced
//
// Content and sync fields are written by separate statements. Importing a
// process never touches its sync fields, and the engine never touches content.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a process or journal entry does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger

	// now is the clock used for timestamps and lease expiry.
	now func() time.Time
}

// Open creates or opens the database at path and initializes the schema.
// The caller must call Close when done.
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		path:   path,
		logger: logger,
		now:    time.Now,
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("WARNING: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the schema if it doesn't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS processes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description_source TEXT NOT NULL DEFAULT '',
		doc_approach TEXT NOT NULL DEFAULT '',
		doc_deployment TEXT NOT NULL DEFAULT '',
		doc_learning TEXT NOT NULL DEFAULT '',
		doc_integration TEXT NOT NULL DEFAULT '',

		-- Written back by the sync engine only
		remote_project_id TEXT NOT NULL DEFAULT '',
		remote_project_url TEXT NOT NULL DEFAULT '',
		workspace_id TEXT NOT NULL DEFAULT '',
		remote_task_ids TEXT NOT NULL DEFAULT '{}',  -- JSON object keyed by dimension

		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		process_id TEXT NOT NULL,
		section_affected TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		remote_task_url TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (process_id) REFERENCES processes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		process_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_locks (
		process_id TEXT PRIMARY KEY,
		holder TEXT NOT NULL,
		acquired_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_process ON journal_entries(process_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_journal_unlinked
	    ON journal_entries(process_id) WHERE remote_task_url = '';
	CREATE INDEX IF NOT EXISTS idx_audit_process ON audit_log(process_id, created_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

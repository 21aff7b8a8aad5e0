// Package store provides storage backends for QueueCTL.
//
// This file implements the SQLite-backed store. A single database file in
// WAL mode is shared by the CLI and every worker process; transactions open
// with BEGIN IMMEDIATE so a select-then-update pair holds the write lock for
// its whole duration and a job can never be claimed twice.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/mattn/go-sqlite3"
	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755

	// sqliteDSNParams pins the connection behavior the queue relies on: WAL
	// for concurrent readers, a 10s driver-level busy timeout, BEGIN
	// IMMEDIATE transactions, and UTC timestamp parsing.
	sqliteDSNParams = "_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate&_loc=UTC"

	// busyRetryAttempts bounds the retry loop around SQLITE_BUSY failures
	// that survive the driver busy timeout.
	busyRetryAttempts = 5
	// busyRetryBaseWait is the first retry delay; it grows linearly.
	busyRetryBaseWait = 50 * time.Millisecond
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// buildSQLiteDSN turns a database file path into a file: DSN carrying
// sqliteDSNParams. Paths that already carry parameters keep them.
func buildSQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + sqliteDSNParams
}

// sqliteFilePath extracts the filesystem path from a bare path or file: DSN.
func sqliteFilePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// NewSQLiteStore creates a new SQLite store with the given database path.
// If the directory doesn't exist, it will be created. The schema is
// installed on first open and seed config rows are inserted if missing, so
// any process (CLI or worker) can be the one that initializes the database.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.SQLiteDSN != "")

	if cfg.SQLiteDSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	path := sqliteFilePath(cfg.SQLiteDSN)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := buildSQLiteDSN(cfg.SQLiteDSN)
	slog.Debug("Opening SQLite database connection", "path", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables and seed config exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied", "path", path)

	return &SQLiteStore{db: db}, nil
}

// isBusy reports whether err is a SQLITE_BUSY or SQLITE_LOCKED failure.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// isDuplicateKey reports whether err is a primary key or unique constraint
// violation.
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// withBusyRetry runs fn, retrying a bounded number of times when SQLite
// reports the database is locked even after the driver busy timeout. Any
// other error returns immediately.
func withBusyRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyRetryBaseWait * time.Duration(attempt+1))
	}
	return err
}

// configValueTx reads an integer config value inside tx, falling back to
// def when the row is missing or unparseable.
func configValueTx(tx *sql.Tx, key string, def int) int {
	var raw string
	if err := tx.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&raw); err != nil {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// GetConfig returns the stored value for key, or the built-in default when
// the row is missing. Unknown keys are rejected.
func (s *SQLiteStore) GetConfig(key string) (string, error) {
	def, ok := configDefault(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownConfigKey, key)
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConfig failed", "error", err, "key", key)
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig validates and upserts a config key.
func (s *SQLiteStore) SetConfig(key, value string) error {
	if err := models.ValidateConfigValue(key, value); err != nil {
		return err
	}
	err := withBusyRetry(func() error {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)`, key, value)
		return err
	})
	if err != nil {
		slog.Error("SQLiteStore SetConfig failed", "error", err, "key", key)
		return fmt.Errorf("set config %s: %w", key, err)
	}
	slog.Debug("SQLiteStore SetConfig succeeded", "key", key, "value", value)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

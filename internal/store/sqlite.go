// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides linked-account/device/pairing/message-log persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			name        TEXT UNIQUE NOT NULL,
			secret_hash TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);

		CREATE TABLE IF NOT EXISTS linked_accounts (
			platform         TEXT NOT NULL,
			platform_user_id TEXT NOT NULL,
			user_id          TEXT NOT NULL REFERENCES users(id),
			display_name     TEXT NOT NULL DEFAULT '',
			linked_at        TEXT NOT NULL,
			updated_at       TEXT NOT NULL,

			PRIMARY KEY (platform, platform_user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_linked_accounts_user ON linked_accounts(user_id);

		CREATE TABLE IF NOT EXISTS pairing_tokens (
			code       TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pairing_tokens_expires ON pairing_tokens(expires_at);

		CREATE TABLE IF NOT EXISTS linked_devices (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id),
			platform     TEXT NOT NULL,
			device_id    TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'active',
			linked_at    TEXT NOT NULL,
			last_used_at TEXT NOT NULL,

			UNIQUE (platform, device_id),
			CHECK (status IN ('active', 'inactive', 'suspended'))
		);

		CREATE INDEX IF NOT EXISTS idx_linked_devices_user ON linked_devices(user_id);
		CREATE INDEX IF NOT EXISTS idx_linked_devices_lookup ON linked_devices(user_id, device_id);

		CREATE TABLE IF NOT EXISTS message_log (
			id               TEXT PRIMARY KEY,
			message_id       TEXT NOT NULL DEFAULT '',
			user_id          TEXT,
			platform         TEXT NOT NULL,
			platform_user_id TEXT NOT NULL,
			text             TEXT NOT NULL DEFAULT '',
			attachments_json TEXT,
			reply_to_id      TEXT,
			raw_json         TEXT,
			success          INTEGER NOT NULL,
			reason           TEXT,
			ts               TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_message_log_user_ts ON message_log(user_id, ts);
		CREATE INDEX IF NOT EXISTS idx_message_log_user_platform_ts ON message_log(user_id, platform, ts);
		CREATE INDEX IF NOT EXISTS idx_message_log_ts ON message_log(ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings, otherwise the string value
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)

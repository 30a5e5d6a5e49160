package store

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

const (
	// DefaultMaxQueueAttempts is the retry ceiling after which a queue entry
	// is parked as poison.
	DefaultMaxQueueAttempts = 5

	// DefaultVersionHistoryLimit caps snapshot history per entity.
	DefaultVersionHistoryLimit = 20

	timeFormat = time.RFC3339Nano
)

// SQLiteStore is the on-device durable store backing all local reads and
// writes. Local writes never touch the network; sync intent is captured in
// the sync_queue table and the per-record sync_status column.
type SQLiteStore struct {
	db *sql.DB

	maxQueueAttempts int
	versionLimit     int

	// now is swappable in tests to control updated_at ordering.
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:               db,
		maxQueueAttempts: DefaultMaxQueueAttempts,
		versionLimit:     DefaultVersionHistoryLimit,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// SetMaxQueueAttempts overrides the queue retry ceiling.
func (s *SQLiteStore) SetMaxQueueAttempts(n int) {
	if n > 0 {
		s.maxQueueAttempts = n
	}
}

// SetVersionHistoryLimit overrides the per-entity snapshot history cap.
func (s *SQLiteStore) SetVersionHistoryLimit(n int) {
	if n > 0 {
		s.versionLimit = n
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSetting retrieves a settings value by key.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("settings key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting sets a settings value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// DeleteSetting removes a settings value. Missing keys are a no-op.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}

// --- shared scan/format helpers ---

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// fmtTimePtr returns a sql-friendly value for a nullable timestamp.
func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Tolerate second-precision values written by older clients.
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

// nullableString converts "" to NULL so partial owner columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableBytes converts empty blobs to NULL.
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

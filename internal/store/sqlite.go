// Package store provides storage backends for LineConcierge.
//
// This file implements an SQLite-backed store for user state, dedup records
// and membership links.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/LineConcierge/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between concurrent webhook requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// GetUserState retrieves the stored state for a user, or nil when there is none.
func (s *SQLiteStore) GetUserState(ctx context.Context, userID string) (*models.UserState, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	var stateJSON string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT state_json, updated_at FROM user_states WHERE user_id = ?`, userID).
		Scan(&stateJSON, &updatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user state for %s: %w", userID, err)
	}
	state, err := decodeUserState(stateJSON, updatedAt)
	if err != nil {
		slog.Error("SQLiteStore GetUserState decode failed", "error", err, "userID", userID)
		return nil, err
	}
	return state, nil
}

// PutUserState replaces the stored state for a user; nil or empty deletes it.
func (s *SQLiteStore) PutUserState(ctx context.Context, userID string, state *models.UserState) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	stateJSON, keep, err := encodeUserState(state)
	if err != nil {
		return err
	}
	if !keep {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM user_states WHERE user_id = ?`, userID); err != nil {
			slog.Error("SQLiteStore PutUserState delete failed", "error", err, "userID", userID)
			return fmt.Errorf("failed to clear user state for %s: %w", userID, err)
		}
		slog.Debug("SQLiteStore PutUserState cleared", "userID", userID)
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_states (user_id, state_json, updated_at) VALUES (?, ?, ?)`,
		userID, stateJSON, time.Now())
	if err != nil {
		slog.Error("SQLiteStore PutUserState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save user state for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore PutUserState succeeded", "userID", userID, "kind", state.Kind())
	return nil
}

// LinkMember records the member email for a user, replacing any earlier link.
func (s *SQLiteStore) LinkMember(ctx context.Context, userID, email string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmptyEmail
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO member_links (user_id, email, linked_at) VALUES (?, ?, ?)`,
		userID, email, time.Now())
	if err != nil {
		slog.Error("SQLiteStore LinkMember failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to link member for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore LinkMember succeeded", "userID", userID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}

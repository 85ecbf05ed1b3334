// Package store provides storage backends for LineConcierge.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/LineConcierge/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetUserState retrieves the stored state for a user, or nil when there is none.
func (s *PostgresStore) GetUserState(ctx context.Context, userID string) (*models.UserState, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	var stateJSON string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT state_json, updated_at FROM user_states WHERE user_id = $1`, userID).
		Scan(&stateJSON, &updatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user state for %s: %w", userID, err)
	}
	state, err := decodeUserState(stateJSON, updatedAt)
	if err != nil {
		slog.Error("PostgresStore GetUserState decode failed", "error", err, "userID", userID)
		return nil, err
	}
	return state, nil
}

// PutUserState replaces the stored state for a user; nil or empty deletes it.
func (s *PostgresStore) PutUserState(ctx context.Context, userID string, state *models.UserState) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	stateJSON, keep, err := encodeUserState(state)
	if err != nil {
		return err
	}
	if !keep {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM user_states WHERE user_id = $1`, userID); err != nil {
			slog.Error("PostgresStore PutUserState delete failed", "error", err, "userID", userID)
			return fmt.Errorf("failed to clear user state for %s: %w", userID, err)
		}
		slog.Debug("PostgresStore PutUserState cleared", "userID", userID)
		return nil
	}
	query := `
		INSERT INTO user_states (user_id, state_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET
			state_json = EXCLUDED.state_json,
			updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, userID, stateJSON, time.Now()); err != nil {
		slog.Error("PostgresStore PutUserState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save user state for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore PutUserState succeeded", "userID", userID, "kind", state.Kind())
	return nil
}

// LinkMember records the member email for a user, replacing any earlier link.
func (s *PostgresStore) LinkMember(ctx context.Context, userID, email string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmptyEmail
	}
	query := `
		INSERT INTO member_links (user_id, email, linked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET email = EXCLUDED.email, linked_at = EXCLUDED.linked_at`
	if _, err := s.db.ExecContext(ctx, query, userID, email, time.Now()); err != nil {
		slog.Error("PostgresStore LinkMember failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to link member for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore LinkMember succeeded", "userID", userID)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	} else {
		slog.Debug("PostgreSQL database connection closed successfully")
	}
	return err
}

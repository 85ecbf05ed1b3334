// Package store provides storage backends for LineConcierge.
//
// Every backend keeps the per-user conversation state, the inbound dedup
// records, and membership links. The in-memory store in this file backs tests
// and deployments with no database configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// ErrEmptyEmail is returned when linking a membership without an address.
var ErrEmptyEmail = errors.New("email cannot be empty")

// UserStateStore loads and saves the active conversation context per user.
type UserStateStore interface {
	// GetUserState returns the stored state, or (nil, nil) when the user has none.
	GetUserState(ctx context.Context, userID string) (*models.UserState, error)
	// PutUserState replaces the state. A nil or empty state clears it.
	PutUserState(ctx context.Context, userID string, state *models.UserState) error
}

// MemberLinkRepo records which community member email belongs to a LINE user.
type MemberLinkRepo interface {
	LinkMember(ctx context.Context, userID, email string) error
}

// Store is the full set of capabilities a backend provides.
type Store interface {
	UserStateStore
	DedupRepo
	MemberLinkRepo
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN           string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSupabase selects the Supabase REST backend.
func WithSupabase(url, key string) Option {
	return func(o *Opts) {
		o.SupabaseURL = url
		o.SupabaseKey = key
	}
}

// WithSupabaseTable overrides the Supabase table holding user state.
func WithSupabaseTable(table string) Option {
	return func(o *Opts) {
		o.SupabaseTable = table
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "user=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the backend selected by opts: Supabase when URL and key are set,
// Postgres or SQLite when a DSN is set, in-memory otherwise.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.SupabaseURL != "" && cfg.SupabaseKey != "":
		slog.Info("store.New: using Supabase store", "table", cfg.SupabaseTable)
		return NewSupabaseStore(opts...)
	case cfg.DSN != "" && DetectDSNType(cfg.DSN) == "postgres":
		slog.Info("store.New: using Postgres store")
		return NewPostgresStore(opts...)
	case cfg.DSN != "":
		slog.Info("store.New: using SQLite store", "path", cfg.DSN)
		return NewSQLiteStore(opts...)
	default:
		slog.Info("store.New: no database configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
}

// InMemoryStore keeps everything in maps guarded by a mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	states  map[string]models.UserState
	dedup   map[string]*DedupRecord
	members map[string]string
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:  make(map[string]models.UserState),
		dedup:   make(map[string]*DedupRecord),
		members: make(map[string]string),
	}
}

func (s *InMemoryStore) GetUserState(ctx context.Context, userID string) (*models.UserState, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) PutUserState(ctx context.Context, userID string, state *models.UserState) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil || state.IsEmpty() {
		delete(s.states, userID)
		return nil
	}
	s.states[userID] = state.WithUpdatedAt(time.Now())
	return nil
}

func (s *InMemoryStore) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[eventID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(ctx context.Context, eventID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[eventID]; ok {
		return false, nil
	}
	s.dedup[eventID] = &DedupRecord{EventID: eventID, UserID: userID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.dedup[eventID]
	if !ok {
		return fmt.Errorf("mark processed failed: unknown event %s", eventID)
	}
	now := time.Now()
	rec.ProcessedAt = &now
	return nil
}

func (s *InMemoryStore) PruneDedup(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.dedup {
		if rec.ReceivedAt.Before(before) {
			delete(s.dedup, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) LinkMember(ctx context.Context, userID, email string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmptyEmail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[userID] = email
	return nil
}

// LinkedEmail returns the email linked to userID (for tests).
func (s *InMemoryStore) LinkedEmail(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.members[userID]
	return email, ok
}

func (s *InMemoryStore) Close() error { return nil }

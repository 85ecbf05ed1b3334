// Package store provides storage backends for LineConcierge.
//
// This file implements a store on top of the Supabase REST API, for
// deployments where the LINE bot and the member site share one project.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	supabase "github.com/nedpals/supabase-go"
	"github.com/samber/lo"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Default Supabase table names.
const (
	DefaultSupabaseStateTable  = "line_user_states"
	DefaultSupabaseDedupTable  = "line_inbound_dedup"
	DefaultSupabaseMemberTable = "line_member_links"
)

type supabaseStateRow struct {
	UserID    string          `json:"user_id"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type supabaseDedupRow struct {
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

type supabaseMemberRow struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	LinkedAt time.Time `json:"linked_at"`
}

// DefaultSupabaseTimeout bounds a PostgREST call when the caller's context
// carries no deadline. The PostgREST HTTP client has no timeout of its own.
const DefaultSupabaseTimeout = 10 * time.Second

// SupabaseStore keeps state in Supabase tables through PostgREST. Every call
// runs under the caller's context.
type SupabaseStore struct {
	client      *supabase.Client
	stateTable  string
	dedupTable  string
	memberTable string
}

// Compile-time check that SupabaseStore implements Store.
var _ Store = (*SupabaseStore)(nil)

// NewSupabaseStore creates a store from WithSupabase options.
func NewSupabaseStore(opts ...Option) (*SupabaseStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		slog.Error("SupabaseStore URL or key not set")
		return nil, fmt.Errorf("supabase url and key must be set")
	}
	table := cfg.SupabaseTable
	if table == "" {
		table = DefaultSupabaseStateTable
	}
	slog.Debug("NewSupabaseStore invoked", "url", cfg.SupabaseURL, "table", table)
	return &SupabaseStore{
		client:      supabase.CreateClient(cfg.SupabaseURL, cfg.SupabaseKey),
		stateTable:  table,
		dedupTable:  DefaultSupabaseDedupTable,
		memberTable: DefaultSupabaseMemberTable,
	}, nil
}

func (s *SupabaseStore) GetUserState(ctx context.Context, userID string) (*models.UserState, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	var rows []supabaseStateRow
	if err := s.client.DB.From(s.stateTable).Select("*").Eq("user_id", userID).ExecuteWithContext(ctx, &rows); err != nil {
		slog.Error("SupabaseStore GetUserState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user state for %s: %w", userID, err)
	}
	if len(rows) == 0 {
		slog.Debug("SupabaseStore GetUserState not found", "userID", userID)
		return nil, nil
	}
	return decodeUserState(string(rows[0].State), rows[0].UpdatedAt)
}

// PutUserState deletes the existing row and inserts the new one. A nil or
// empty state only deletes.
func (s *SupabaseStore) PutUserState(ctx context.Context, userID string, state *models.UserState) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	stateJSON, keep, err := encodeUserState(state)
	if err != nil {
		return err
	}
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	if err := s.client.DB.From(s.stateTable).Delete().Eq("user_id", userID).ExecuteWithContext(ctx, nil); err != nil {
		slog.Error("SupabaseStore PutUserState delete failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to clear user state for %s: %w", userID, err)
	}
	if !keep {
		slog.Debug("SupabaseStore PutUserState cleared", "userID", userID)
		return nil
	}
	row := supabaseStateRow{UserID: userID, State: json.RawMessage(stateJSON), UpdatedAt: time.Now().UTC()}
	var inserted []supabaseStateRow
	if err := s.client.DB.From(s.stateTable).Insert(row).ExecuteWithContext(ctx, &inserted); err != nil {
		slog.Error("SupabaseStore PutUserState insert failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save user state for %s: %w", userID, err)
	}
	slog.Debug("SupabaseStore PutUserState succeeded", "userID", userID, "kind", state.Kind())
	return nil
}

func (s *SupabaseStore) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	var rows []supabaseDedupRow
	if err := s.client.DB.From(s.dedupTable).Select("event_id").Eq("event_id", eventID).ExecuteWithContext(ctx, &rows); err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return len(rows) > 0, nil
}

// RecordInbound checks then inserts; a concurrent insert of the same event
// fails on the primary key and is reported as a duplicate.
func (s *SupabaseStore) RecordInbound(ctx context.Context, eventID, userID string) (bool, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	exists, err := s.IsDuplicate(ctx, eventID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	var inserted []supabaseDedupRow
	row := supabaseDedupRow{EventID: eventID, UserID: userID, ReceivedAt: time.Now().UTC()}
	if err := s.client.DB.From(s.dedupTable).Insert(row).ExecuteWithContext(ctx, &inserted); err != nil {
		if again, checkErr := s.IsDuplicate(ctx, eventID); checkErr == nil && again {
			return false, nil
		}
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return true, nil
}

func (s *SupabaseStore) MarkProcessed(ctx context.Context, eventID string) error {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	now := time.Now().UTC()
	var updated []supabaseDedupRow
	err := s.client.DB.From(s.dedupTable).
		Update(map[string]interface{}{"processed_at": now}).
		Eq("event_id", eventID).
		ExecuteWithContext(ctx, &updated)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// PruneDedup selects the stale event IDs and deletes exactly those, since a
// PostgREST DELETE answers 204 without the removed rows.
func (s *SupabaseStore) PruneDedup(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	var stale []supabaseDedupRow
	err := s.client.DB.From(s.dedupTable).
		Select("event_id").
		Lt("received_at", before.UTC().Format(time.RFC3339Nano)).
		ExecuteWithContext(ctx, &stale)
	if err != nil {
		return 0, fmt.Errorf("prune dedup select failed: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	ids := lo.Map(stale, func(row supabaseDedupRow, _ int) string { return row.EventID })
	if err := s.client.DB.From(s.dedupTable).Delete().In("event_id", ids).ExecuteWithContext(ctx, nil); err != nil {
		return 0, fmt.Errorf("prune dedup delete failed: %w", err)
	}
	return int64(len(ids)), nil
}

func (s *SupabaseStore) LinkMember(ctx context.Context, userID, email string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmptyEmail
	}
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	if err := s.client.DB.From(s.memberTable).Delete().Eq("user_id", userID).ExecuteWithContext(ctx, nil); err != nil {
		slog.Error("SupabaseStore LinkMember delete failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to link member for %s: %w", userID, err)
	}
	var inserted []supabaseMemberRow
	row := supabaseMemberRow{UserID: userID, Email: email, LinkedAt: time.Now().UTC()}
	if err := s.client.DB.From(s.memberTable).Insert(row).ExecuteWithContext(ctx, &inserted); err != nil {
		slog.Error("SupabaseStore LinkMember insert failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to link member for %s: %w", userID, err)
	}
	slog.Debug("SupabaseStore LinkMember succeeded", "userID", userID)
	return nil
}

func withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultSupabaseTimeout)
}

// Close is a no-op; the REST client holds no connection.
func (s *SupabaseStore) Close() error { return nil }

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

func (s *SQLiteStore) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT event_id FROM inbound_dedup WHERE event_id = ?`, eventID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

// RecordInbound relies on the primary key, so two concurrent deliveries of the
// same event cannot both win.
func (s *SQLiteStore) RecordInbound(ctx context.Context, eventID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO inbound_dedup (event_id, user_id, received_at) VALUES (?, ?, ?)`,
		eventID, nilIfEmpty(userID), time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	if n == 0 {
		slog.Debug("SQLiteStore RecordInbound duplicate", "eventID", eventID, "userID", userID)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE inbound_dedup SET processed_at = ? WHERE event_id = ?`, time.Now(), eventID)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PruneDedup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune dedup failed: %w", err)
	}
	return result.RowsAffected()
}

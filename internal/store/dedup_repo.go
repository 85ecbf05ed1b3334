// Package store provides the DedupRepo interface for inbound event deduplication.
package store

import (
	"context"
	"time"
)

// DedupRecord tracks one inbound webhook event. EventID holds the LINE
// webhookEventId, which stays the same across redeliveries.
type DedupRecord struct {
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo defines the interface for inbound event deduplication.
type DedupRepo interface {
	// IsDuplicate reports whether the event ID has already been recorded.
	IsDuplicate(ctx context.Context, eventID string) (bool, error)

	// RecordInbound inserts a new record. Returns false if the event was
	// already recorded (duplicate).
	RecordInbound(ctx context.Context, eventID, userID string) (bool, error)

	// MarkProcessed sets the processed_at timestamp once a reply was attempted.
	MarkProcessed(ctx context.Context, eventID string) error

	// PruneDedup deletes records received before the cutoff and returns how
	// many were removed.
	PruneDedup(ctx context.Context, before time.Time) (int64, error)
}

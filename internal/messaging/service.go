// Package messaging connects the diagnosis flow to a chat transport: the reply
// channel abstraction, its LINE implementation, and the dispatcher that routes
// each inbound event to exactly one reply.
package messaging

import (
	"context"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// ReplyChannel sends one reply in answer to an inbound event.
type ReplyChannel interface {
	// Reply sends reply using the one-shot reply token of the inbound event.
	// Implementations log failures themselves; callers do not retry.
	Reply(ctx context.Context, replyToken string, reply models.Reply) error
}

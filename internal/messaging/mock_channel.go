package messaging

import (
	"context"
	"sync"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// SentReply records one call to MockChannel.Reply. CtxErr is the context
// error at send time; a real channel would have failed the call.
type SentReply struct {
	ReplyToken string
	Reply      models.Reply
	CtxErr     error
}

// MockChannel records replies instead of sending them. Err, when set, is
// returned from every Reply call after recording.
type MockChannel struct {
	mu      sync.Mutex
	replies []SentReply
	Err     error
}

// Compile-time check that MockChannel implements ReplyChannel.
var _ ReplyChannel = (*MockChannel)(nil)

func NewMockChannel() *MockChannel {
	return &MockChannel{}
}

func (m *MockChannel) Reply(ctx context.Context, replyToken string, reply models.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, SentReply{ReplyToken: replyToken, Reply: reply, CtxErr: ctx.Err()})
	return m.Err
}

// Replies returns a copy of everything sent so far.
func (m *MockChannel) Replies() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentReply(nil), m.replies...)
}

// Last returns the most recent reply, or false if none was sent.
func (m *MockChannel) Last() (SentReply, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return SentReply{}, false
	}
	return m.replies[len(m.replies)-1], true
}

// Reset forgets recorded replies.
func (m *MockChannel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = nil
}

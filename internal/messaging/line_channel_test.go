package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

type capturedReply struct {
	ReplyToken string `json:"replyToken"`
	Messages   []struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		QuickReply *struct {
			Items []struct {
				Type   string `json:"type"`
				Action struct {
					Type  string `json:"type"`
					Label string `json:"label"`
					Text  string `json:"text"`
				} `json:"action"`
			} `json:"items"`
		} `json:"quickReply"`
	} `json:"messages"`
}

type fakeLineAPI struct {
	mu       sync.Mutex
	requests []capturedReply
	auth     string
	status   int
}

func (f *fakeLineAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/v2/bot/message/reply" {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req capturedReply
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = r.Header.Get("Authorization")
	status := f.status
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"Invalid reply token"}`))
		return
	}
	_, _ = w.Write([]byte(`{"sentMessages":[{"id":"1","quoteToken":"q"}]}`))
}

func newTestLineChannel(t *testing.T) (*LineChannel, *fakeLineAPI) {
	t.Helper()
	api := &fakeLineAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	ch, err := NewLineChannel(WithChannelAccessToken("test-token"), WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewLineChannel: %v", err)
	}
	return ch, api
}

func TestNewLineChannelRequiresToken(t *testing.T) {
	if _, err := NewLineChannel(); err == nil {
		t.Error("expected error without access token")
	}
}

func TestLineChannelReplySendsQuickReplies(t *testing.T) {
	ch, api := newTestLineChannel(t)
	reply := models.Reply{
		Text: "Question 1/3",
		QuickReply: []models.QuickReplyItem{
			{Label: "cost/ROI", Text: "cost/ROI"},
			{Label: "cancel", Text: "cancel"},
		},
	}
	if err := ch.Reply(context.Background(), "reply-token-1", reply); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(api.requests))
	}
	if api.auth != "Bearer test-token" {
		t.Errorf("unexpected Authorization header %q", api.auth)
	}
	req := api.requests[0]
	if req.ReplyToken != "reply-token-1" || len(req.Messages) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	msg := req.Messages[0]
	if msg.Type != "text" || msg.Text != "Question 1/3" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.QuickReply == nil || len(msg.QuickReply.Items) != 2 {
		t.Fatalf("expected two quick reply items, got %+v", msg.QuickReply)
	}
	item := msg.QuickReply.Items[1]
	if item.Type != "action" || item.Action.Type != "message" || item.Action.Label != "cancel" || item.Action.Text != "cancel" {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestLineChannelReplyWithoutButtons(t *testing.T) {
	ch, api := newTestLineChannel(t)
	if err := ch.Reply(context.Background(), "tok", models.TextReply("plain")); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if qr := api.requests[0].Messages[0].QuickReply; qr != nil {
		t.Errorf("expected no quick reply, got %+v", qr)
	}
}

func TestLineChannelReplyTruncatesLongText(t *testing.T) {
	ch, api := newTestLineChannel(t)
	long := strings.Repeat("あ", models.MaxReplyTextRunes+100)
	if err := ch.Reply(context.Background(), "tok", models.TextReply(long)); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	got := []rune(api.requests[0].Messages[0].Text)
	if len(got) != models.MaxReplyTextRunes {
		t.Errorf("expected %d runes, got %d", models.MaxReplyTextRunes, len(got))
	}
	if got[len(got)-1] != '…' {
		t.Error("expected truncation marker")
	}
}

func TestLineChannelReplyRejectsInvalid(t *testing.T) {
	ch, api := newTestLineChannel(t)
	ctx := context.Background()
	if err := ch.Reply(ctx, "", models.TextReply("x")); !errors.Is(err, models.ErrEmptyReplyToken) {
		t.Errorf("expected ErrEmptyReplyToken, got %v", err)
	}
	if err := ch.Reply(ctx, "tok", models.Reply{}); !errors.Is(err, models.ErrEmptyReplyText) {
		t.Errorf("expected ErrEmptyReplyText, got %v", err)
	}
	items := make([]models.QuickReplyItem, models.MaxQuickReplyItems+1)
	for i := range items {
		items[i] = models.QuickReplyItem{Label: "x", Text: "x"}
	}
	if err := ch.Reply(ctx, "tok", models.Reply{Text: "x", QuickReply: items}); !errors.Is(err, models.ErrTooManyQuickItem) {
		t.Errorf("expected ErrTooManyQuickItem, got %v", err)
	}
	if len(api.requests) != 0 {
		t.Errorf("invalid replies must not reach the API, got %d requests", len(api.requests))
	}
}

func TestLineChannelReplyAPIError(t *testing.T) {
	ch, api := newTestLineChannel(t)
	api.status = http.StatusBadRequest
	if err := ch.Reply(context.Background(), "expired", models.TextReply("x")); err == nil {
		t.Error("expected error from API failure")
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncateText("abcdefgh", 5); got != "abcd…" {
		t.Errorf("unexpected %q", got)
	}
}

package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

type mockExecutor struct {
	webhookID string
	token     string
	params    *discordgo.WebhookParams
	err       error
}

func (m *mockExecutor) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.webhookID, m.token, m.params = webhookID, token, data
	return nil, m.err
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/123456/abc-DEF_token")
	if err != nil {
		t.Fatalf("ParseWebhookURL: %v", err)
	}
	if id != "123456" || token != "abc-DEF_token" {
		t.Errorf("got id=%q token=%q", id, token)
	}

	for _, bad := range []string{
		"",
		"not a url",
		"http://discord.com/api/webhooks/1/t",
		"https://discord.com/api/channels/1/t",
		"https://discord.com/api/webhooks/123456",
	} {
		if _, _, err := ParseWebhookURL(bad); !errors.Is(err, ErrInvalidWebhookURL) {
			t.Errorf("%q: expected ErrInvalidWebhookURL, got %v", bad, err)
		}
	}
}

func TestNewWithoutURLIsNop(t *testing.T) {
	n, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := n.(NopNotifier); !ok {
		t.Errorf("expected NopNotifier, got %T", n)
	}
	if _, err := New(WithWebhookURL("https://example.com/nothing")); err == nil {
		t.Error("expected error for invalid webhook URL")
	}
}

func TestDiscordNotifierDiagnosisCompleted(t *testing.T) {
	mock := &mockExecutor{}
	n := &DiscordNotifier{session: mock, webhookID: "1", token: "t", username: "bot"}
	final := models.DiagnosisState{Keyword: models.KeywordManufacturingDX, Layer: 4, Answers: []string{"a", "b", "c"}}
	err := n.DiagnosisCompleted(context.Background(), "U1234567890abcdef", final, []models.Article{{Title: "First"}, {Title: "Second"}})
	if err != nil {
		t.Fatalf("DiagnosisCompleted: %v", err)
	}
	if mock.webhookID != "1" || mock.token != "t" {
		t.Errorf("wrong webhook: %q/%q", mock.webhookID, mock.token)
	}
	content := mock.params.Content
	for _, want := range []string{"manufacturing DX diagnosis", "a > b > c", "First, Second", "...abcdef"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q: %s", want, content)
		}
	}
	if strings.Contains(content, "U1234567890abcdef") {
		t.Error("full user ID must not be posted")
	}
	if mock.params.AllowedMentions == nil {
		t.Error("mentions must be disabled")
	}
}

func TestDiscordNotifierTruncatesAndReportsErrors(t *testing.T) {
	mock := &mockExecutor{err: errors.New("rate limited")}
	n := &DiscordNotifier{session: mock, webhookID: "1", token: "t"}
	final := models.DiagnosisState{Keyword: models.KeywordQuickDiagnosis, Layer: 4, Answers: []string{strings.Repeat("x", 3000)}}
	err := n.DiagnosisCompleted(context.Background(), "U1", final, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if got := len([]rune(mock.params.Content)); got > maxContentLength {
		t.Errorf("content not truncated: %d runes", got)
	}
}

func TestDiscordNotifierMemberLinkedMasksEmail(t *testing.T) {
	mock := &mockExecutor{}
	n := &DiscordNotifier{session: mock, webhookID: "1", token: "t"}
	if err := n.MemberLinked(context.Background(), "U1234567890abcdef", "member@example.com"); err != nil {
		t.Fatalf("MemberLinked: %v", err)
	}
	content := mock.params.Content
	if strings.Contains(content, "member@example.com") {
		t.Errorf("full email must not be posted: %s", content)
	}
	if !strings.Contains(content, "m***@example.com") {
		t.Errorf("expected masked email: %s", content)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"member@example.com": "m***@example.com",
		"a@b.co":             "a***@b.co",
		"no-at-sign":         "***",
		"@example.com":       "***",
	}
	for in, want := range cases {
		if got := maskEmail(in); got != want {
			t.Errorf("maskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

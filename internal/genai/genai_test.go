package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
	calls  int
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.calls++
	m.params = params
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestClient(mock *mockChatService) *Client {
	return &Client{chat: mock, model: "test-model", temperature: 0.2, maxCompletionTokens: 100}
}

func TestGeneratePrompt_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("  Hello World\n")}
	out, err := newTestClient(mock).GeneratePrompt(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.params.Messages))
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %q", mock.params.Model)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := newTestClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := newTestClient(&mockChatService{resp: openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}})
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestTransform(t *testing.T) {
	for _, mode := range []models.ToolMode{models.ToolModePolish, models.ToolModeRiskCheck} {
		mock := &mockChatService{resp: completion("done")}
		out, err := newTestClient(mock).Transform(context.Background(), mode, "please fix this")
		if err != nil || out != "done" {
			t.Errorf("%s: got %q, %v", mode, out, err)
		}
		if mock.calls != 1 {
			t.Errorf("%s: expected one call, got %d", mode, mock.calls)
		}
	}
}

func TestTransform_RejectsBadInput(t *testing.T) {
	mock := &mockChatService{resp: completion("unused")}
	client := newTestClient(mock)
	if _, err := client.Transform(context.Background(), "translate", "text"); !errors.Is(err, models.ErrUnknownToolMode) {
		t.Errorf("expected ErrUnknownToolMode, got %v", err)
	}
	if _, err := client.Transform(context.Background(), models.ToolModePolish, "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("rejected input must not reach the API, got %d calls", mock.calls)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithTemperature(0.9))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" || cli.temperature != 0.9 {
		t.Errorf("options not applied: model=%q temperature=%v", cli.model, cli.temperature)
	}
}

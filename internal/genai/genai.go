// Package genai provides the text tools (polish, risk check) backed by the
// OpenAI chat completion API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Default generation settings
const (
	DefaultModel               = string(openai.ChatModelGPT4oMini)
	DefaultTemperature         = 0.3
	DefaultMaxCompletionTokens = 800
)

var (
	// ErrNoChoicesReturned is returned when the API answers without a choice.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrEmptyInput is returned when there is no text to transform.
	ErrEmptyInput = errors.New("input text cannot be empty")
	// ErrMissingAPIKey is returned by NewClient when no API key is configured.
	ErrMissingAPIKey = errors.New("OpenAI API key not set")
)

// System prompts per tool mode.
var systemPrompts = map[models.ToolMode]string{
	models.ToolModePolish: "You are an editor for business messages. Rewrite the user's text so it is clear, " +
		"polite and concise. Keep the original language and meaning. Reply with the rewritten text only.",
	models.ToolModeRiskCheck: "You review business messages for risk before they are sent. List any statements " +
		"that could be misleading, legally risky, or disclose confidential or personal information, " +
		"each with a one-line suggestion. If there is nothing to flag, say so in one sentence.",
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey              string
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) {
		o.Temperature = t
	}
}

// WithMaxCompletionTokens caps the reply length.
func WithMaxCompletionTokens(n int64) Option {
	return func(o *Opts) {
		o.MaxCompletionTokens = n
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat                chatService
	model               string
	temperature         float64
	maxCompletionTokens int64
}

// NewClient initializes a GenAI client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:               DefaultModel,
		Temperature:         DefaultTemperature,
		MaxCompletionTokens: DefaultMaxCompletionTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "temperature", cfg.Temperature)
	return &Client{
		chat:                completionsAdapter{svc: &cli.Chat.Completions},
		model:               cfg.Model,
		temperature:         cfg.Temperature,
		maxCompletionTokens: cfg.MaxCompletionTokens,
	}, nil
}

// GeneratePrompt generates a response for a system and a user prompt.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxCompletionTokens)
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Client.GeneratePrompt: chat completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("Client.GeneratePrompt: completion received", "model", c.model, "length", len(content))
	return content, nil
}

// Transform runs the tool for mode on text.
func (c *Client) Transform(ctx context.Context, mode models.ToolMode, text string) (string, error) {
	prompt, ok := systemPrompts[mode]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownToolMode, mode)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	return c.GeneratePrompt(ctx, prompt, text)
}

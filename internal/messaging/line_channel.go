package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/samber/lo"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Opts holds configuration for the LINE reply channel.
type Opts struct {
	ChannelAccessToken string
	Endpoint           string
}

// Option configures the LINE reply channel.
type Option func(*Opts)

// WithChannelAccessToken sets the long-lived channel access token.
func WithChannelAccessToken(token string) Option {
	return func(o *Opts) {
		o.ChannelAccessToken = token
	}
}

// WithEndpoint overrides the Messaging API base URL (for tests).
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) {
		o.Endpoint = endpoint
	}
}

// LineChannel replies through the LINE Messaging API.
type LineChannel struct {
	bot *messaging_api.MessagingApiAPI
}

// Compile-time check that LineChannel implements ReplyChannel.
var _ ReplyChannel = (*LineChannel)(nil)

// NewLineChannel creates a reply channel. A channel access token is required.
func NewLineChannel(opts ...Option) (*LineChannel, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChannelAccessToken == "" {
		return nil, fmt.Errorf("LINE channel access token not set")
	}
	var apiOpts []messaging_api.MessagingApiAPIOption
	if cfg.Endpoint != "" {
		apiOpts = append(apiOpts, messaging_api.WithEndpoint(cfg.Endpoint))
	}
	bot, err := messaging_api.NewMessagingApiAPI(cfg.ChannelAccessToken, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE messaging client: %w", err)
	}
	slog.Debug("NewLineChannel: LINE messaging client created", "custom_endpoint", cfg.Endpoint != "")
	return &LineChannel{bot: bot}, nil
}

// Reply sends reply as a single text message with optional quick replies.
func (c *LineChannel) Reply(ctx context.Context, replyToken string, reply models.Reply) error {
	if replyToken == "" {
		return models.ErrEmptyReplyToken
	}
	reply.Text = truncateText(reply.Text, models.MaxReplyTextRunes)
	if err := reply.Validate(); err != nil {
		slog.Error("LineChannel.Reply: reply rejected before sending", "error", err, "items", len(reply.QuickReply))
		return fmt.Errorf("invalid reply: %w", err)
	}

	req := &messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{toTextMessage(reply)},
	}
	if _, err := c.bot.WithContext(ctx).ReplyMessage(req); err != nil {
		slog.Error("LineChannel.Reply: reply failed", "error", err)
		return fmt.Errorf("failed to send LINE reply: %w", err)
	}
	slog.Debug("LineChannel.Reply: reply sent", "length", len(reply.Text), "items", len(reply.QuickReply))
	return nil
}

func toTextMessage(reply models.Reply) messaging_api.TextMessage {
	msg := messaging_api.TextMessage{Text: reply.Text}
	if len(reply.QuickReply) > 0 {
		msg.QuickReply = &messaging_api.QuickReply{
			Items: lo.Map(reply.QuickReply, func(item models.QuickReplyItem, _ int) messaging_api.QuickReplyItem {
				return messaging_api.QuickReplyItem{
					Type:   "action",
					Action: &messaging_api.MessageAction{Label: item.Label, Text: item.Text},
				}
			}),
		}
	}
	return msg
}

// truncateText cuts text to max characters, marking the cut.
func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}

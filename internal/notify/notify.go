// Package notify posts operator alerts about finished diagnoses and linked
// memberships to a Discord channel webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// ErrInvalidWebhookURL is returned for URLs that are not Discord webhook URLs.
var ErrInvalidWebhookURL = errors.New("invalid discord webhook url")

// maxContentLength is Discord's limit for a message body.
const maxContentLength = 2000

// Notifier receives business events from the dispatcher. Implementations must
// not block the reply path for long; errors are only logged by callers.
type Notifier interface {
	DiagnosisCompleted(ctx context.Context, userID string, final models.DiagnosisState, articles []models.Article) error
	MemberLinked(ctx context.Context, userID, email string) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) DiagnosisCompleted(context.Context, string, models.DiagnosisState, []models.Article) error {
	return nil
}

func (NopNotifier) MemberLinked(context.Context, string, string) error { return nil }

// webhookExecutor is the part of discordgo.Session the notifier needs.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts events to one channel webhook.
type DiscordNotifier struct {
	session   webhookExecutor
	webhookID string
	token     string
	username  string
}

// Opts holds configuration for the Discord notifier.
type Opts struct {
	WebhookURL string
	Username   string
}

// Option configures the Discord notifier.
type Option func(*Opts)

// WithWebhookURL sets the Discord webhook URL.
func WithWebhookURL(u string) Option {
	return func(o *Opts) {
		o.WebhookURL = u
	}
}

// WithUsername overrides the display name of the posting bot.
func WithUsername(name string) Option {
	return func(o *Opts) {
		o.Username = name
	}
}

// New returns a DiscordNotifier when a webhook URL is configured, and a
// NopNotifier otherwise.
func New(opts ...Option) (Notifier, error) {
	cfg := Opts{Username: "LineConcierge"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.WebhookURL == "" {
		slog.Debug("notify.New: no webhook configured, notifications disabled")
		return NopNotifier{}, nil
	}
	id, token, err := ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	slog.Info("notify.New: Discord notifications enabled", "webhook_id", id)
	return &DiscordNotifier{session: session, webhookID: id, token: token, username: cfg.Username}, nil
}

// ParseWebhookURL extracts the ID and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
}

func (n *DiscordNotifier) DiagnosisCompleted(ctx context.Context, userID string, final models.DiagnosisState, articles []models.Article) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** completed by user `%s`\n", final.Keyword, maskUserID(userID))
	if len(final.Answers) > 0 {
		fmt.Fprintf(&sb, "Answers: %s\n", strings.Join(final.Answers, " > "))
	}
	if len(articles) == 0 {
		sb.WriteString("No matching articles.")
	} else {
		titles := make([]string, 0, len(articles))
		for _, a := range articles {
			titles = append(titles, a.Title)
		}
		fmt.Fprintf(&sb, "Recommended: %s", strings.Join(titles, ", "))
	}
	return n.post(ctx, sb.String())
}

func (n *DiscordNotifier) MemberLinked(ctx context.Context, userID, email string) error {
	return n.post(ctx, fmt.Sprintf("Membership linked: user `%s` confirmed `%s`", maskUserID(userID), maskEmail(email)))
}

func (n *DiscordNotifier) post(ctx context.Context, content string) error {
	if runes := []rune(content); len(runes) > maxContentLength {
		content = string(runes[:maxContentLength-3]) + "..."
	}
	params := &discordgo.WebhookParams{
		Content:  content,
		Username: n.username,
		// Answers are user input; never let them ping anyone.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if _, err := n.session.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
		slog.Error("DiscordNotifier.post: webhook execute failed", "webhook_id", n.webhookID, "error", err)
		return fmt.Errorf("discord webhook execute failed: %w", err)
	}
	slog.Debug("DiscordNotifier.post: notification sent", "webhook_id", n.webhookID, "length", len(content))
	return nil
}

// maskUserID keeps the last six characters of a LINE user ID.
func maskUserID(userID string) string {
	if len(userID) <= 6 {
		return userID
	}
	return "..." + userID[len(userID)-6:]
}

// maskEmail keeps the first character and the domain: m***@example.com.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return string([]rune(local)[:1]) + "***@" + domain
}

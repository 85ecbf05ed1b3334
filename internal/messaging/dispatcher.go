package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/flow"
	"github.com/BTreeMap/LineConcierge/internal/models"
	"github.com/BTreeMap/LineConcierge/internal/notify"
	"github.com/BTreeMap/LineConcierge/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TextTool runs a tool mode on free text.
type TextTool interface {
	Transform(ctx context.Context, mode models.ToolMode, text string) (string, error)
}

// Dispatcher routes each inbound event to exactly one reply. It holds no
// per-user state; everything lives in the injected store.
type Dispatcher struct {
	engine   *flow.Engine
	states   store.UserStateStore
	channel  ReplyChannel
	dedup    store.DedupRepo
	members  store.MemberLinkRepo
	tool     TextTool
	notifier notify.Notifier

	notifyTimeout time.Duration
}

// DispatcherOption configures optional collaborators of a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDedup drops events whose webhook event ID was already recorded.
func WithDedup(repo store.DedupRepo) DispatcherOption {
	return func(d *Dispatcher) {
		d.dedup = repo
	}
}

// WithMemberLinks enables membership linking by email.
func WithMemberLinks(repo store.MemberLinkRepo) DispatcherOption {
	return func(d *Dispatcher) {
		d.members = repo
	}
}

// WithTextTool enables the polish and risk check tools.
func WithTextTool(tool TextTool) DispatcherOption {
	return func(d *Dispatcher) {
		d.tool = tool
	}
}

// DefaultNotifyTimeout bounds a notification sent after the reply.
const DefaultNotifyTimeout = 5 * time.Second

// WithNotifyTimeout bounds each notification. Non-positive values keep the default.
func WithNotifyTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.notifyTimeout = timeout
		}
	}
}

// WithNotifier sets where completion and linking events are reported.
func WithNotifier(n notify.Notifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// NewDispatcher creates a dispatcher over engine, reading and writing user
// state in states and replying through channel.
func NewDispatcher(engine *flow.Engine, states store.UserStateStore, channel ReplyChannel, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		states:   states,
		channel:  channel,
		notifier: notify.NopNotifier{},

		notifyTimeout: DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleAll processes events one at a time, in delivery order.
func (d *Dispatcher) HandleAll(ctx context.Context, events []models.InboundEvent) {
	for _, ev := range events {
		if err := d.Handle(ctx, ev); err != nil {
			slog.Warn("Dispatcher.HandleAll: event not handled", "eventID", ev.EventID, "kind", ev.Kind, "error", err)
		}
	}
}

// Handle processes one event. The returned error only reports events that
// cannot be answered at all; routing problems are turned into replies.
// Notifications run after the reply is sent, on their own deadline.
func (d *Dispatcher) Handle(ctx context.Context, ev models.InboundEvent) error {
	if ev.ReplyToken == "" {
		return models.ErrEmptyReplyToken
	}
	log := slog.With("eventID", ev.EventID, "userID", ev.UserID, "kind", ev.Kind)

	if d.dedup != nil && ev.EventID != "" {
		fresh, err := d.dedup.RecordInbound(ctx, ev.EventID, ev.UserID)
		switch {
		case err != nil:
			log.Warn("Dispatcher.Handle: dedup check failed, processing anyway", "error", err)
		case !fresh:
			log.Info("Dispatcher.Handle: duplicate event skipped", "redelivery", ev.IsRedelivery)
			return nil
		}
		defer func() {
			if err := d.dedup.MarkProcessed(ctx, ev.EventID); err != nil {
				log.Warn("Dispatcher.Handle: failed to mark event processed", "error", err)
			}
		}()
	}

	var t turn
	switch ev.Kind {
	case models.EventKindFollow:
		t.reply = d.engine.Builder().BuildMenuMessage(d.engine.Table(), WelcomeIntro)
	case models.EventKindText, models.EventKindPostback:
		if ev.UserID == "" {
			log.Warn("Dispatcher.Handle: text event without user ID, replying with help")
			t.reply = d.helpReply()
			break
		}
		t = d.route(ctx, ev.UserID, ev.Text)
	default:
		t.reply = d.helpReply()
	}

	if err := d.channel.Reply(ctx, ev.ReplyToken, t.reply); err != nil {
		log.Debug("Dispatcher.Handle: reply not delivered", "error", err)
	}
	if t.notify != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.notifyTimeout)
		defer cancel()
		if err := t.notify(nctx); err != nil {
			log.Warn("Dispatcher.Handle: notification failed", "error", err)
		}
	}
	return nil
}

// turn is the result of routing one text event.
type turn struct {
	reply   models.Reply
	next    models.UserState
	changed bool
	// notify runs after the reply has been sent.
	notify func(ctx context.Context) error
}

func replyOnly(reply models.Reply) turn {
	return turn{reply: reply}
}

func moveTo(reply models.Reply, next models.UserState) turn {
	return turn{reply: reply, next: next, changed: true}
}

// route picks the handler for text given the user's active context and
// persists the resulting context.
func (d *Dispatcher) route(ctx context.Context, userID, text string) turn {
	current, err := d.states.GetUserState(ctx, userID)
	if err != nil {
		slog.Warn("Dispatcher.route: failed to load user state, treating as none", "userID", userID, "error", err)
		current = nil
	}
	state := models.NoContext()
	if current != nil {
		state = *current
	}

	var t turn
	switch state.Kind() {
	case models.ContextDiagnosis:
		diag, _ := state.Diagnosis()
		t = d.advanceDiagnosis(ctx, userID, diag, text)
	case models.ContextPendingEmail:
		email, _ := state.PendingEmail()
		t = d.confirmEmail(ctx, userID, email, text)
	case models.ContextToolMode:
		mode, _ := state.Mode()
		switch {
		case flow.IsCancel(text):
			t = moveTo(models.TextReply(ToolCancelledText), models.NoContext())
		case flow.MatchKeyword(text).Kind != flow.MatchNone:
			t = d.matchText(userID, state, text)
		default:
			t = d.runTool(ctx, userID, mode, text)
		}
	default:
		t = d.matchText(userID, state, text)
	}

	if t.changed {
		if err := d.states.PutUserState(ctx, userID, &t.next); err != nil {
			slog.Error("Dispatcher.route: failed to save user state, replying anyway", "userID", userID, "kind", t.next.Kind(), "error", err)
		}
	}
	return t
}

func (d *Dispatcher) advanceDiagnosis(ctx context.Context, userID string, diag models.DiagnosisState, text string) turn {
	out := d.engine.Advance(ctx, diag, text)
	slog.Debug("Dispatcher.advanceDiagnosis: step applied", "userID", userID, "outcome", out.Kind, "keyword", diag.Keyword, "layer", diag.Layer)
	if out.Kind == flow.OutcomeReprompted {
		return replyOnly(out.Reply)
	}
	if out.State != nil {
		return moveTo(out.Reply, models.DiagnosisContext(*out.State))
	}
	t := moveTo(out.Reply, models.NoContext())
	if out.Kind == flow.OutcomeCompleted {
		final, articles := out.Final, out.Articles
		t.notify = func(ctx context.Context) error {
			return d.notifier.DiagnosisCompleted(ctx, userID, final, articles)
		}
	}
	return t
}

func (d *Dispatcher) confirmEmail(ctx context.Context, userID, email, text string) turn {
	switch flow.NormalizeInput(text) {
	case models.ConfirmYes:
		if d.members == nil {
			slog.Warn("Dispatcher.confirmEmail: no member link repository configured", "userID", userID)
			return moveTo(models.TextReply(EmailLinkFailedText), models.NoContext())
		}
		if err := d.members.LinkMember(ctx, userID, email); err != nil {
			slog.Error("Dispatcher.confirmEmail: failed to link member", "userID", userID, "error", err)
			return moveTo(models.TextReply(EmailLinkFailedText), models.NoContext())
		}
		slog.Info("Dispatcher.confirmEmail: membership linked", "userID", userID)
		t := moveTo(models.TextReply(fmt.Sprintf(EmailLinkedFormat, email)), models.NoContext())
		t.notify = func(ctx context.Context) error {
			return d.notifier.MemberLinked(ctx, userID, email)
		}
		return t
	case models.ConfirmNo, models.CancelKeyword:
		return moveTo(models.TextReply(EmailDeclinedText), models.NoContext())
	default:
		return replyOnly(confirmReply(EmailRepromptFormat, email))
	}
}

func (d *Dispatcher) runTool(ctx context.Context, userID string, mode models.ToolMode, text string) turn {
	if d.tool == nil {
		slog.Warn("Dispatcher.runTool: tool requested but no text tool configured", "userID", userID, "mode", mode)
		return moveTo(models.TextReply(ToolUnavailableText), models.NoContext())
	}
	out, err := d.tool.Transform(ctx, mode, flow.NormalizeInput(text))
	if err != nil || out == "" {
		slog.Error("Dispatcher.runTool: tool failed", "userID", userID, "mode", mode, "error", err)
		return moveTo(models.TextReply(ToolFailureText), models.NoContext())
	}
	slog.Info("Dispatcher.runTool: tool reply ready", "userID", userID, "mode", mode, "length", len(out))
	return moveTo(models.TextReply(out), models.NoContext())
}

// matchText handles text when no context claims it. state is the context
// being overridden, if any; it is only cleared when it was set.
func (d *Dispatcher) matchText(userID string, state models.UserState, text string) turn {
	keep := func(reply models.Reply) turn {
		if state.IsEmpty() {
			return replyOnly(reply)
		}
		return moveTo(reply, models.NoContext())
	}
	m := flow.MatchKeyword(text)
	switch m.Kind {
	case flow.MatchDiagnosis:
		out, err := d.engine.Start(m.Keyword)
		if err != nil {
			slog.Warn("Dispatcher.matchText: keyword has no flow, replying with help", "userID", userID, "keyword", m.Keyword, "error", err)
			return keep(d.helpReply())
		}
		slog.Info("Dispatcher.matchText: diagnosis started", "userID", userID, "keyword", m.Keyword)
		return moveTo(out.Reply, models.DiagnosisContext(*out.State))
	case flow.MatchMenu:
		slog.Debug("Dispatcher.matchText: command received", "userID", userID, "command", m.Command)
		switch m.Command {
		case models.CommandPolish:
			return moveTo(models.TextReply(PolishPrompt), models.ToolModeContext(models.ToolModePolish))
		case models.CommandRiskCheck:
			return moveTo(models.TextReply(RiskCheckPrompt), models.ToolModeContext(models.ToolModeRiskCheck))
		case models.CommandCommunity:
			return keep(models.TextReply(fmt.Sprintf(CommunityFormat, d.engine.Builder().CommunityURL)))
		case models.CommandLinkMembership:
			return keep(models.TextReply(LinkMembershipPrompt))
		default:
			return keep(d.helpReply())
		}
	}

	normalized := flow.NormalizeInput(text)
	if emailPattern.MatchString(normalized) {
		slog.Info("Dispatcher.matchText: email received, asking for confirmation", "userID", userID)
		return moveTo(confirmReply(EmailConfirmFormat, normalized), models.PendingEmailContext(normalized))
	}
	return keep(d.helpReply())
}

func (d *Dispatcher) helpReply() models.Reply {
	return d.engine.Builder().BuildMenuMessage(d.engine.Table(), HelpIntro)
}

func confirmReply(format, email string) models.Reply {
	return models.Reply{
		Text: fmt.Sprintf(format, email),
		QuickReply: []models.QuickReplyItem{
			{Label: ConfirmYesLabel, Text: models.ConfirmYes},
			{Label: ConfirmNoLabel, Text: models.ConfirmNo},
		},
	}
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

type requestIDKey struct{}

// RequestID returns the request ID attached to ctx by the webhook handler.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, http.MethodPost, "Server.webhookHandler") {
		return
	}
	requestID := uuid.NewString()
	log := slog.With("request_id", requestID)

	cb, err := webhook.ParseRequest(s.opts.ChannelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			log.Warn("Server.webhookHandler: invalid signature")
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid signature"))
			return
		}
		log.Warn("Server.webhookHandler: failed to parse webhook", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid webhook body"))
		return
	}

	events := make([]models.InboundEvent, 0, len(cb.Events))
	for _, raw := range cb.Events {
		ev, ok := convertEvent(raw)
		if !ok {
			log.Debug("Server.webhookHandler: skipping event without reply token", "type", raw.GetType())
			continue
		}
		events = append(events, ev)
	}
	log.Info("Server.webhookHandler: webhook received", "events", len(cb.Events), "dispatched", len(events))

	ctx, cancel := context.WithTimeout(context.WithValue(r.Context(), requestIDKey{}, requestID), s.opts.RequestTimeout)
	defer cancel()
	s.handler.HandleAll(ctx, events)

	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// convertEvent maps a LINE event to an InboundEvent. Events that cannot be
// replied to (unfollow, leave, ...) report false.
func convertEvent(raw webhook.EventInterface) (models.InboundEvent, bool) {
	var ev models.InboundEvent
	switch e := raw.(type) {
	case webhook.MessageEvent:
		ev = baseEvent(e.WebhookEventId, e.ReplyToken, e.Source, e.DeliveryContext, e.Timestamp)
		if text, ok := e.Message.(webhook.TextMessageContent); ok {
			ev.Kind = models.EventKindText
			ev.Text = text.Text
		} else {
			ev.Kind = models.EventKindOther
		}
	case webhook.PostbackEvent:
		ev = baseEvent(e.WebhookEventId, e.ReplyToken, e.Source, e.DeliveryContext, e.Timestamp)
		ev.Kind = models.EventKindPostback
		if e.Postback != nil {
			ev.Text = e.Postback.Data
		}
	case webhook.FollowEvent:
		ev = baseEvent(e.WebhookEventId, e.ReplyToken, e.Source, e.DeliveryContext, e.Timestamp)
		ev.Kind = models.EventKindFollow
	default:
		return models.InboundEvent{}, false
	}
	return ev, ev.ReplyToken != ""
}

func baseEvent(eventID, replyToken string, source webhook.SourceInterface, dc *webhook.DeliveryContext, ts int64) models.InboundEvent {
	ev := models.InboundEvent{
		EventID:    eventID,
		UserID:     sourceUserID(source),
		ReplyToken: replyToken,
		Timestamp:  ts,
	}
	if dc != nil {
		ev.IsRedelivery = dc.IsRedelivery
	}
	return ev
}

func sourceUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

// Package models defines the core data structures for LineConcierge.
//
// It includes inbound events, outbound replies with quick-reply buttons, catalog
// articles, and the JSON envelope returned by the HTTP API.
package models

import "errors"

// Error variables for better error handling and testability
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptyReplyToken  = errors.New("reply token cannot be empty")
	ErrEmptyReplyText   = errors.New("reply text cannot be empty")
	ErrTooManyQuickItem = errors.New("too many quick reply items")
	ErrLabelTooLong     = errors.New("quick reply label exceeds maximum length")
	ErrUnknownToolMode  = errors.New("unknown tool mode")
)

// Platform limits imposed by the LINE Messaging API.
const (
	// MaxQuickReplyItems is the maximum number of quick reply buttons on one message.
	MaxQuickReplyItems = 13
	// MaxQuickReplyLabelRunes is the maximum label length in characters.
	MaxQuickReplyLabelRunes = 20
	// MaxReplyTextRunes is the maximum text message length in characters.
	MaxReplyTextRunes = 5000
)

// EventKind classifies an inbound webhook event.
type EventKind string

const (
	EventKindText     EventKind = "text"
	EventKindPostback EventKind = "postback"
	EventKindFollow   EventKind = "follow"
	EventKindOther    EventKind = "other"
)

// InboundEvent is a transport-neutral view of one webhook event.
type InboundEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	ReplyToken   string    `json:"reply_token"`
	Kind         EventKind `json:"kind"`
	Text         string    `json:"text,omitempty"`
	IsRedelivery bool      `json:"is_redelivery,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

// QuickReplyItem is one tappable button. Tapping it sends Text as a message.
type QuickReplyItem struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Reply is one outbound text message with optional quick reply buttons.
type Reply struct {
	Text       string           `json:"text"`
	QuickReply []QuickReplyItem `json:"quick_reply,omitempty"`
}

// TextReply builds a reply without buttons.
func TextReply(text string) Reply {
	return Reply{Text: text}
}

// Validate checks the reply against the platform limits.
func (r Reply) Validate() error {
	if r.Text == "" {
		return ErrEmptyReplyText
	}
	if len(r.QuickReply) > MaxQuickReplyItems {
		return ErrTooManyQuickItem
	}
	for _, item := range r.QuickReply {
		if len([]rune(item.Label)) > MaxQuickReplyLabelRunes {
			return ErrLabelTooLong
		}
	}
	return nil
}

// Article is a recommended piece of content.
type Article struct {
	ID    ArticleID `json:"id" yaml:"id"`
	Title string    `json:"title" yaml:"title"`
	URL   string    `json:"url" yaml:"url"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

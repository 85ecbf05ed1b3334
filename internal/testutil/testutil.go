// Package testutil provides common test utilities and helpers for LineConcierge tests.
package testutil

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// TestingT is the subset of *testing.T the helpers need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// SignatureHeader is the header LINE uses to sign webhook bodies.
const SignatureHeader = "X-Line-Signature"

// SignLINEBody returns the base64 HMAC-SHA256 of body keyed with the channel secret.
func SignLINEBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewWebhookRequest creates a signed POST /webhook request carrying body.
func NewWebhookRequest(t TestingT, secret string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, SignLINEBody(secret, body))
	return req
}

// WebhookBody wraps events in the LINE webhook envelope.
func WebhookBody(t TestingT, events ...map[string]interface{}) []byte {
	t.Helper()
	if events == nil {
		events = []map[string]interface{}{}
	}
	return MustMarshalJSON(t, map[string]interface{}{
		"destination": "Ubot0000000000000000000000000000",
		"events":      events,
	})
}

func baseEvent(eventType, eventID, userID, replyToken string) map[string]interface{} {
	return map[string]interface{}{
		"type":            eventType,
		"mode":            "active",
		"timestamp":       1700000000000,
		"webhookEventId":  eventID,
		"deliveryContext": map[string]interface{}{"isRedelivery": false},
		"replyToken":      replyToken,
		"source":          map[string]interface{}{"type": "user", "userId": userID},
	}
}

// TextEvent builds a text message event.
func TextEvent(eventID, userID, replyToken, text string) map[string]interface{} {
	ev := baseEvent("message", eventID, userID, replyToken)
	ev["message"] = map[string]interface{}{
		"type":       "text",
		"id":         fmt.Sprintf("msg-%s", eventID),
		"quoteToken": "quote-" + eventID,
		"text":       text,
	}
	return ev
}

// PostbackEvent builds a postback event carrying data.
func PostbackEvent(eventID, userID, replyToken, data string) map[string]interface{} {
	ev := baseEvent("postback", eventID, userID, replyToken)
	ev["postback"] = map[string]interface{}{"data": data}
	return ev
}

// FollowEvent builds a follow event.
func FollowEvent(eventID, userID, replyToken string) map[string]interface{} {
	ev := baseEvent("follow", eventID, userID, replyToken)
	ev["follow"] = map[string]interface{}{"isUnblocked": false}
	return ev
}

// StickerEvent builds a sticker message event.
func StickerEvent(eventID, userID, replyToken string) map[string]interface{} {
	ev := baseEvent("message", eventID, userID, replyToken)
	ev["message"] = map[string]interface{}{
		"type":                "sticker",
		"id":                  fmt.Sprintf("msg-%s", eventID),
		"quoteToken":          "quote-" + eventID,
		"packageId":           "446",
		"stickerId":           "1988",
		"stickerResourceType": "STATIC",
	}
	return ev
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TestingT, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TestingT, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Errorf("response missing or invalid 'status' field")
	}

	return response
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TestingT, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TestingT, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

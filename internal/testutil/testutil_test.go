package testutil

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

func TestSignLINEBody(t *testing.T) {
	// printf '{}' | openssl dgst -sha256 -hmac secret -binary | base64
	if got := SignLINEBody("secret", []byte("{}")); got != "dzJZAsrKgS3CWXM6rNBGtzgXNyx3e42VtAJkdHRRbhM=" {
		t.Errorf("unexpected signature %q", got)
	}
	if SignLINEBody("a", []byte("x")) == SignLINEBody("b", []byte("x")) {
		t.Error("different secrets must give different signatures")
	}
}

func TestNewWebhookRequestParsesWithSDK(t *testing.T) {
	body := WebhookBody(t,
		TextEvent("evt-1", "U1", "tok-1", "quick diagnosis"),
		PostbackEvent("evt-2", "U1", "tok-2", "cost/ROI"),
		FollowEvent("evt-3", "U2", "tok-3"),
		StickerEvent("evt-4", "U2", "tok-4"),
	)
	req := NewWebhookRequest(t, "channel-secret", body)
	if req.Header.Get(SignatureHeader) == "" {
		t.Fatal("signature header not set")
	}

	cb, err := webhook.ParseRequest("channel-secret", req)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(cb.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(cb.Events))
	}
}

func TestNewWebhookRequestWrongSecret(t *testing.T) {
	req := NewWebhookRequest(t, "channel-secret", WebhookBody(t))
	if _, err := webhook.ParseRequest("other-secret", req); err != webhook.ErrInvalidSignature {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestTextEventFields(t *testing.T) {
	ev := TextEvent("evt-9", "U9", "tok-9", "hello")
	if ev["webhookEventId"] != "evt-9" || ev["replyToken"] != "tok-9" {
		t.Errorf("unexpected event %v", ev)
	}
	msg := ev["message"].(map[string]interface{})
	if msg["text"] != "hello" || msg["type"] != "text" {
		t.Errorf("unexpected message %v", msg)
	}
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")
			if tt.shouldFail != mockT.failed {
				t.Errorf("expected failed=%v, got %v", tt.shouldFail, mockT.failed)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	tests := []struct {
		name           string
		jsonBody       string
		expectedStatus string
		shouldFail     bool
	}{
		{"valid JSON with matching status", `{"status":"ok","result":"test"}`, "ok", false},
		{"valid JSON with different status", `{"status":"error"}`, "ok", true},
		{"invalid JSON", `{"status":}`, "ok", true},
		{"missing status field", `{"result":"test"}`, "ok", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			rr := httptest.NewRecorder()
			rr.Body.WriteString(tt.jsonBody)

			response := AssertJSONResponse(mockT, rr, tt.expectedStatus)

			if tt.shouldFail != mockT.failed {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mockT.failed, mockT.errorMsg)
			}
			if !tt.shouldFail && response == nil {
				t.Error("Expected response map to be returned")
			}
		})
	}
}

func TestMustUnmarshalJSON(t *testing.T) {
	var target map[string]interface{}
	MustUnmarshalJSON(t, MustMarshalJSON(t, map[string]interface{}{"key": "value", "number": 123}), &target)

	if target["key"] != "value" {
		t.Errorf("Expected key to be 'value', got %v", target["key"])
	}
	if target["number"].(float64) != 123 {
		t.Errorf("Expected number to be 123, got %v", target["number"])
	}
}

// mockTestingT records failures instead of stopping the test.
type mockTestingT struct {
	failed   bool
	errorMsg string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

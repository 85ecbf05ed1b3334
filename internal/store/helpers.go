package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeUserState serializes a state for the state_json column. ok is false
// when the state should be deleted instead.
func encodeUserState(state *models.UserState) (string, bool, error) {
	if state == nil || state.IsEmpty() {
		return "", false, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode user state: %w", err)
	}
	return string(data), true, nil
}

// decodeUserState parses a state_json column. An empty column decodes to nil.
func decodeUserState(stateJSON string, updatedAt time.Time) (*models.UserState, error) {
	if strings.TrimSpace(stateJSON) == "" {
		return nil, nil
	}
	var state models.UserState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to decode user state: %w", err)
	}
	if state.IsEmpty() {
		return nil, nil
	}
	state = state.WithUpdatedAt(updatedAt)
	return &state, nil
}

// normalizeEmail lowercases and trims an address before it is stored.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

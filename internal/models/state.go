// Package models defines per-user interaction state for LineConcierge.
package models

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Layer bounds for a diagnosis. Layers 1..3 name the next question; LayerComplete
// means every answer has been collected.
const (
	FirstLayer    = 1
	LayerComplete = 4
)

// DiagnosisState tracks one user's progress through a diagnosis flow.
type DiagnosisState struct {
	Keyword DiagnosisKeyword `json:"keyword"`
	Layer   int              `json:"layer"`
	Answers []string         `json:"answers"`
}

// NewDiagnosisState returns the initial state for keyword.
func NewDiagnosisState(keyword DiagnosisKeyword) DiagnosisState {
	return DiagnosisState{Keyword: keyword, Layer: FirstLayer, Answers: []string{}}
}

// Consistent reports whether the layer is in range and the answer count matches it.
func (d DiagnosisState) Consistent() bool {
	if d.Layer < FirstLayer || d.Layer > LayerComplete {
		return false
	}
	return len(d.Answers) == d.Layer-1
}

// Clone returns a deep copy so callers can mutate answers freely.
func (d DiagnosisState) Clone() DiagnosisState {
	answers := make([]string, len(d.Answers))
	copy(answers, d.Answers)
	return DiagnosisState{Keyword: d.Keyword, Layer: d.Layer, Answers: answers}
}

// ContextKind tags which interaction context is active for a user.
type ContextKind string

const (
	ContextNone         ContextKind = ""
	ContextToolMode     ContextKind = "tool_mode"
	ContextDiagnosis    ContextKind = "diagnosis"
	ContextPendingEmail ContextKind = "pending_email"
)

// UserState holds exactly one active interaction context. The fields are
// unexported so two contexts can never be set at once; use the constructors.
type UserState struct {
	kind         ContextKind
	mode         ToolMode
	diagnosis    DiagnosisState
	pendingEmail string
	updatedAt    time.Time
}

// NoContext returns a state with nothing active.
func NoContext() UserState { return UserState{} }

// ToolModeContext returns a state with the given tool mode active.
func ToolModeContext(mode ToolMode) UserState {
	return UserState{kind: ContextToolMode, mode: mode}
}

// DiagnosisContext returns a state with the given diagnosis active.
func DiagnosisContext(d DiagnosisState) UserState {
	return UserState{kind: ContextDiagnosis, diagnosis: d.Clone()}
}

// PendingEmailContext returns a state awaiting confirmation of email.
func PendingEmailContext(email string) UserState {
	return UserState{kind: ContextPendingEmail, pendingEmail: email}
}

// Kind returns the active context tag.
func (u UserState) Kind() ContextKind { return u.kind }

// IsEmpty reports whether no context is active.
func (u UserState) IsEmpty() bool { return u.kind == ContextNone }

// Mode returns the tool mode if that context is active.
func (u UserState) Mode() (ToolMode, bool) {
	return u.mode, u.kind == ContextToolMode
}

// Diagnosis returns a copy of the diagnosis if that context is active.
func (u UserState) Diagnosis() (DiagnosisState, bool) {
	if u.kind != ContextDiagnosis {
		return DiagnosisState{}, false
	}
	return u.diagnosis.Clone(), true
}

// PendingEmail returns the email awaiting confirmation if that context is active.
func (u UserState) PendingEmail() (string, bool) {
	return u.pendingEmail, u.kind == ContextPendingEmail
}

// UpdatedAt is the last persist time reported by the store, if any.
func (u UserState) UpdatedAt() time.Time { return u.updatedAt }

// WithUpdatedAt returns a copy of u carrying the store's timestamp.
func (u UserState) WithUpdatedAt(t time.Time) UserState {
	u.updatedAt = t
	return u
}

// userStateJSON is the persisted shape. At most one field is non-null.
type userStateJSON struct {
	Mode         *ToolMode       `json:"mode"`
	Diagnosis    *DiagnosisState `json:"diagnosis"`
	PendingEmail *string         `json:"pendingEmail"`
}

// MarshalJSON writes the {mode, diagnosis, pendingEmail} blob.
func (u UserState) MarshalJSON() ([]byte, error) {
	var out userStateJSON
	switch u.kind {
	case ContextToolMode:
		m := u.mode
		out.Mode = &m
	case ContextDiagnosis:
		d := u.diagnosis.Clone()
		out.Diagnosis = &d
	case ContextPendingEmail:
		e := u.pendingEmail
		out.PendingEmail = &e
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the persisted blob. Rows with several fields set resolve
// in the order diagnosis, pendingEmail, mode.
func (u *UserState) UnmarshalJSON(data []byte) error {
	var in userStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode user state: %w", err)
	}

	set := 0
	if in.Diagnosis != nil {
		set++
	}
	if in.PendingEmail != nil && *in.PendingEmail != "" {
		set++
	}
	if in.Mode != nil && *in.Mode != "" {
		set++
	}
	if set > 1 {
		slog.Warn("UserState.UnmarshalJSON: multiple contexts set, keeping highest priority", "count", set)
	}

	switch {
	case in.Diagnosis != nil:
		*u = DiagnosisContext(*in.Diagnosis)
	case in.PendingEmail != nil && *in.PendingEmail != "":
		*u = PendingEmailContext(*in.PendingEmail)
	case in.Mode != nil && *in.Mode != "":
		if !IsValidToolMode(*in.Mode) {
			return fmt.Errorf("decode user state: %w: %q", ErrUnknownToolMode, *in.Mode)
		}
		*u = ToolModeContext(*in.Mode)
	default:
		*u = NoContext()
	}
	return nil
}

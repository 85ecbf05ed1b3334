package flow

import (
	"testing"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

func TestMatchKeyword(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		kind    MatchKind
		keyword models.DiagnosisKeyword
		command models.MenuCommand
	}{
		{"exact keyword", "quick diagnosis", MatchDiagnosis, models.KeywordQuickDiagnosis, ""},
		{"surrounding spaces", "  hospital AI risk diagnosis \n", MatchDiagnosis, models.KeywordHospitalAIRisk, ""},
		{"full-width space inside", "quick　diagnosis", MatchDiagnosis, models.KeywordQuickDiagnosis, ""},
		{"full-width space around", "　manufacturing DX diagnosis　", MatchDiagnosis, models.KeywordManufacturingDX, ""},
		{"menu command", "help", MatchMenu, "", models.CommandHelp},
		{"menu command with space", "risk check", MatchMenu, "", models.CommandRiskCheck},
		{"partial keyword", "quick", MatchNone, "", ""},
		{"keyword with suffix", "quick diagnosis please", MatchNone, "", ""},
		{"case differs", "Quick Diagnosis", MatchNone, "", ""},
		{"empty", "", MatchNone, "", ""},
		{"only spaces", "　 ", MatchNone, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := MatchKeyword(tc.input)
			if m.Kind != tc.kind {
				t.Fatalf("kind: expected %v, got %v", tc.kind, m.Kind)
			}
			if m.Keyword != tc.keyword {
				t.Errorf("keyword: expected %q, got %q", tc.keyword, m.Keyword)
			}
			if m.Command != tc.command {
				t.Errorf("command: expected %q, got %q", tc.command, m.Command)
			}
		})
	}
}

func TestIsCancel(t *testing.T) {
	if !IsCancel("cancel") || !IsCancel("　cancel ") {
		t.Error("expected cancel keyword to match after normalization")
	}
	if IsCancel("cancel please") || IsCancel("Cancel") {
		t.Error("cancel must match exactly")
	}
}

// Package flow implements the diagnosis conversation: keyword matching, the
// per-keyword question tree, the state machine that walks it, and the
// messages rendered at each step.
package flow

import (
	"strings"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// fullWidthSpace is the ideographic space LINE keyboards often insert.
const fullWidthSpace = "　"

// MatchKind classifies the result of MatchKeyword.
type MatchKind int

const (
	// MatchNone means the text is free text.
	MatchNone MatchKind = iota
	// MatchDiagnosis means the text starts a diagnosis.
	MatchDiagnosis
	// MatchMenu means the text is a menu command.
	MatchMenu
)

// Match is the result of MatchKeyword. Only the field for Kind is set.
type Match struct {
	Kind    MatchKind
	Keyword models.DiagnosisKeyword
	Command models.MenuCommand
}

var (
	diagnosisKeywordSet = make(map[string]models.DiagnosisKeyword, len(models.DiagnosisKeywords))
	menuCommandSet      = make(map[string]models.MenuCommand, len(models.MenuCommands))
)

func init() {
	for _, k := range models.DiagnosisKeywords {
		diagnosisKeywordSet[string(k)] = k
	}
	for _, c := range models.MenuCommands {
		menuCommandSet[string(c)] = c
	}
}

// NormalizeInput replaces full-width spaces with ASCII spaces and trims.
func NormalizeInput(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, fullWidthSpace, " "))
}

// MatchKeyword maps text to a diagnosis keyword or menu command by exact match
// after normalization. It never fails; unmatched text yields MatchNone.
func MatchKeyword(text string) Match {
	normalized := NormalizeInput(text)
	if k, ok := diagnosisKeywordSet[normalized]; ok {
		return Match{Kind: MatchDiagnosis, Keyword: k}
	}
	if c, ok := menuCommandSet[normalized]; ok {
		return Match{Kind: MatchMenu, Command: c}
	}
	return Match{Kind: MatchNone}
}

// IsCancel reports whether text is the cancel keyword.
func IsCancel(text string) bool {
	return NormalizeInput(text) == models.CancelKeyword
}

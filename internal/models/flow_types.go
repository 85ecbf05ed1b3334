// Package models defines keyword and command types shared by the flow and messaging packages.
package models

// DiagnosisKeyword names one diagnosis flow. The set is fixed at deploy time.
type DiagnosisKeyword string

// MenuCommand is a static menu entry the user can type or tap.
type MenuCommand string

// ToolMode is a one-shot text tool the user can switch into.
type ToolMode string

// ArticleID identifies a recommended article in the content catalog.
type ArticleID string

// Diagnosis keyword constants.
const (
	KeywordQuickDiagnosis  DiagnosisKeyword = "quick diagnosis"
	KeywordHospitalAIRisk  DiagnosisKeyword = "hospital AI risk diagnosis"
	KeywordManufacturingDX DiagnosisKeyword = "manufacturing DX diagnosis"
)

// Menu command constants.
const (
	CommandHelp           MenuCommand = "help"
	CommandMenu           MenuCommand = "menu"
	CommandPolish         MenuCommand = "polish"
	CommandRiskCheck      MenuCommand = "risk check"
	CommandCommunity      MenuCommand = "community"
	CommandLinkMembership MenuCommand = "link membership"
)

// Tool mode constants. The string values are the persisted form.
const (
	ToolModePolish    ToolMode = "polish"
	ToolModeRiskCheck ToolMode = "risk_check"
)

// CancelKeyword clears whatever interaction context the user is in.
const CancelKeyword = "cancel"

// Confirmation replies for a pending membership email.
const (
	ConfirmYes = "yes"
	ConfirmNo  = "no"
)

// DiagnosisKeywords lists every keyword in display order.
var DiagnosisKeywords = []DiagnosisKeyword{
	KeywordQuickDiagnosis,
	KeywordHospitalAIRisk,
	KeywordManufacturingDX,
}

// MenuCommands lists every menu command in display order.
var MenuCommands = []MenuCommand{
	CommandHelp,
	CommandMenu,
	CommandPolish,
	CommandRiskCheck,
	CommandCommunity,
	CommandLinkMembership,
}

// IsValidToolMode reports whether m is a known tool mode.
func IsValidToolMode(m ToolMode) bool {
	switch m {
	case ToolModePolish, ToolModeRiskCheck:
		return true
	default:
		return false
	}
}

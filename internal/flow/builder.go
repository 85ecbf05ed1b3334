package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Quick reply rendering constants
const (
	// MaxQuestionOptions leaves one quick reply slot for the cancel button.
	MaxQuestionOptions = models.MaxQuickReplyItems - 1
	// truncatedLabelRunes is how much of a long label survives before the ellipsis.
	truncatedLabelRunes = models.MaxQuickReplyLabelRunes - len(labelEllipsis)
	labelEllipsis       = "..."
	// CancelLabel is the label of the trailing cancel button.
	CancelLabel = "Cancel"
	// ProgressFormat prefixes each question.
	ProgressFormat = "Question %d/%d"
	// DefaultCommunityURL is used when no invite link is configured.
	DefaultCommunityURL = "https://community.example.com/invite"
)

// TruncateLabel shortens label to the platform limit, keeping the first 17
// characters and appending "..." when it is longer than 20 characters.
func TruncateLabel(label string) string {
	if utf8.RuneCountInString(label) <= models.MaxQuickReplyLabelRunes {
		return label
	}
	runes := []rune(label)
	return string(runes[:truncatedLabelRunes]) + labelEllipsis
}

// QuickReplyItems renders options as buttons. The label is truncated, the text
// sent back stays the full option so it matches verbatim.
func QuickReplyItems(options []string) []models.QuickReplyItem {
	if len(options) > MaxQuestionOptions {
		options = options[:MaxQuestionOptions]
	}
	return lo.Map(options, func(opt string, _ int) models.QuickReplyItem {
		return models.QuickReplyItem{Label: TruncateLabel(opt), Text: opt}
	})
}

// CancelItem is the button that sends the cancel keyword.
func CancelItem() models.QuickReplyItem {
	return models.QuickReplyItem{Label: CancelLabel, Text: models.CancelKeyword}
}

// Builder renders flow steps into replies.
type Builder struct {
	CommunityURL string
}

// NewBuilder returns a builder with the given invite link, or the default one.
func NewBuilder(communityURL string) *Builder {
	if communityURL == "" {
		communityURL = DefaultCommunityURL
	}
	return &Builder{CommunityURL: communityURL}
}

// BuildQuestionMessage renders a question with its progress marker, one button
// per option and a trailing cancel button.
func (b *Builder) BuildQuestionMessage(q Question, layer, total int) models.Reply {
	text := fmt.Sprintf(ProgressFormat, layer, total) + "\n" + q.Prompt
	items := append(QuickReplyItems(q.Options), CancelItem())
	return models.Reply{Text: text, QuickReply: items}
}

// BuildConclusionMessage renders the recommendation for a finished diagnosis.
func (b *Builder) BuildConclusionMessage(state models.DiagnosisState, articles []models.Article) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your %s is complete.\n", state.Keyword)
	if len(state.Answers) > 0 {
		fmt.Fprintf(&sb, "Your answers: %s\n", strings.Join(state.Answers, " > "))
	}
	sb.WriteString("\n")
	if len(articles) == 0 {
		sb.WriteString("We could not find articles for this combination yet.\n")
	} else {
		sb.WriteString("Recommended reading:\n")
		for i, a := range articles {
			fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, a.Title, a.URL)
		}
	}
	sb.WriteString("\nJoin our community to talk it through with other members:\n")
	sb.WriteString(b.CommunityURL)
	return sb.String()
}

// BuildDiagnosisStartMessage renders the first question for keyword. It returns
// false when the keyword has no flow.
func (b *Builder) BuildDiagnosisStartMessage(table *Table, keyword models.DiagnosisKeyword) (models.Reply, bool) {
	q, ok := table.NextQuestion(models.NewDiagnosisState(keyword))
	if !ok {
		return models.Reply{}, false
	}
	return b.BuildQuestionMessage(q, models.FirstLayer, table.TotalQuestions(keyword)), true
}

// BuildMenuMessage lists the diagnosis keywords as quick replies.
func (b *Builder) BuildMenuMessage(table *Table, intro string) models.Reply {
	keywords := table.Keywords()
	options := lo.Map(keywords, func(k models.DiagnosisKeyword, _ int) string { return string(k) })
	items := QuickReplyItems(append(options, string(models.CommandPolish), string(models.CommandRiskCheck), string(models.CommandCommunity)))

	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\nStart a diagnosis by sending one of:\n")
	for _, k := range keywords {
		fmt.Fprintf(&sb, "- %s\n", k)
	}
	fmt.Fprintf(&sb, "\nOther commands: %q, %q, %q, %q.", models.CommandPolish, models.CommandRiskCheck, models.CommandCommunity, models.CommandLinkMembership)
	return models.Reply{Text: sb.String(), QuickReply: items}
}

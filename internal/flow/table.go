package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// DefaultTotalQuestions is the depth of every flow, and the answer for keywords
// with no flow.
const DefaultTotalQuestions = 3

// Error variables for flow table validation
var (
	ErrUnknownKeyword  = errors.New("no flow defined for keyword")
	ErrDuplicateFlow   = errors.New("flow defined twice for keyword")
	ErrFlowInvalid     = errors.New("flow definition invalid")
	ErrUnknownArticle  = errors.New("article not found in catalog")
	ErrDuplicateOption = errors.New("option listed twice")
)

// Question is what the user is asked at one layer.
type Question struct {
	Prompt  string
	Options []string
}

// Node is one question in the tree. Each branch is an option the user can pick.
type Node struct {
	Prompt   string
	Branches []Branch
}

// Branch links an option to the next question, or to a conclusion at the last layer.
type Branch struct {
	Option   string
	Next     *Node
	Articles []models.ArticleID
}

// Question renders the node as a prompt plus option labels in order.
func (n *Node) Question() Question {
	options := make([]string, len(n.Branches))
	for i, b := range n.Branches {
		options[i] = b.Option
	}
	return Question{Prompt: n.Prompt, Options: options}
}

func (n *Node) branch(option string) (*Branch, bool) {
	if n == nil {
		return nil, false
	}
	for i := range n.Branches {
		if n.Branches[i].Option == option {
			return &n.Branches[i], true
		}
	}
	return nil, false
}

// FlowDefinition is the question tree for one keyword.
type FlowDefinition struct {
	Keyword        models.DiagnosisKeyword
	TotalQuestions int
	Root           *Node
}

// Table holds every flow keyed by keyword.
type Table struct {
	flows map[models.DiagnosisKeyword]*FlowDefinition
	order []models.DiagnosisKeyword
}

// NewTable builds a table from the given definitions. It does not validate them;
// call Validate once the catalog is known.
func NewTable(defs ...*FlowDefinition) (*Table, error) {
	t := &Table{flows: make(map[models.DiagnosisKeyword]*FlowDefinition, len(defs))}
	for _, def := range defs {
		if _, exists := t.flows[def.Keyword]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFlow, def.Keyword)
		}
		if def.TotalQuestions == 0 {
			def.TotalQuestions = DefaultTotalQuestions
		}
		t.flows[def.Keyword] = def
		t.order = append(t.order, def.Keyword)
	}
	return t, nil
}

// Keywords returns the keywords with a flow, in definition order.
func (t *Table) Keywords() []models.DiagnosisKeyword {
	return slices.Clone(t.order)
}

// FlowForKeyword returns the flow for keyword.
func (t *Table) FlowForKeyword(keyword models.DiagnosisKeyword) (*FlowDefinition, bool) {
	def, ok := t.flows[keyword]
	return def, ok
}

// TotalQuestions returns the number of questions for keyword, or
// DefaultTotalQuestions when the keyword has no flow.
func (t *Table) TotalQuestions(keyword models.DiagnosisKeyword) int {
	if def, ok := t.flows[keyword]; ok {
		return def.TotalQuestions
	}
	return DefaultTotalQuestions
}

// currentNode walks the tree to the question for state.Layer.
func (t *Table) currentNode(state models.DiagnosisState) (*Node, bool) {
	def, ok := t.flows[state.Keyword]
	if !ok || def.Root == nil {
		return nil, false
	}
	if state.Layer < models.FirstLayer || state.Layer > def.TotalQuestions {
		return nil, false
	}
	if len(state.Answers) < state.Layer-1 {
		return nil, false
	}
	node := def.Root
	for i := 0; i < state.Layer-1; i++ {
		b, ok := node.branch(state.Answers[i])
		if !ok || b.Next == nil {
			return nil, false
		}
		node = b.Next
	}
	return node, true
}

// NextQuestion returns the question the user is facing. It returns false for
// layer 4 and above, unknown keywords, and answer paths with no branch.
func (t *Table) NextQuestion(state models.DiagnosisState) (Question, bool) {
	node, ok := t.currentNode(state)
	if !ok {
		return Question{}, false
	}
	return node.Question(), true
}

// CurrentOptions returns the options for the question the user is facing, or nil.
func (t *Table) CurrentOptions(state models.DiagnosisState) []string {
	q, ok := t.NextQuestion(state)
	if !ok {
		return nil
	}
	return q.Options
}

// IsValidAnswer reports whether answer is verbatim one of CurrentOptions(state).
func (t *Table) IsValidAnswer(state models.DiagnosisState, answer string) bool {
	return slices.Contains(t.CurrentOptions(state), answer)
}

// Conclusion returns the article IDs for a completed answer path. It returns
// false until every layer is answered or when the path does not resolve.
func (t *Table) Conclusion(state models.DiagnosisState) ([]models.ArticleID, bool) {
	def, ok := t.flows[state.Keyword]
	if !ok || def.Root == nil {
		return nil, false
	}
	if state.Layer < models.LayerComplete || len(state.Answers) < def.TotalQuestions {
		return nil, false
	}
	node := def.Root
	for i := 0; i < def.TotalQuestions; i++ {
		b, ok := node.branch(state.Answers[i])
		if !ok {
			return nil, false
		}
		if i == def.TotalQuestions-1 {
			return slices.Clone(b.Articles), true
		}
		if b.Next == nil {
			return nil, false
		}
		node = b.Next
	}
	return nil, false
}

// Validate checks every flow: the tree depth matches TotalQuestions, options are
// non-empty and unique, quick reply limits hold, inner branches have a child,
// leaves have articles, and every article exists in catalog.
func (t *Table) Validate(catalog Catalog) error {
	for _, keyword := range t.order {
		def := t.flows[keyword]
		if def.Root == nil {
			return fmt.Errorf("%w: %q has no root question", ErrFlowInvalid, keyword)
		}
		// Layers map onto a fixed set of phases, so every flow has the same depth.
		if def.TotalQuestions != DefaultTotalQuestions {
			return fmt.Errorf("%w: %q declares %d questions, want %d", ErrFlowInvalid, keyword, def.TotalQuestions, DefaultTotalQuestions)
		}
		if err := validateNode(def.Root, 1, def.TotalQuestions, catalog); err != nil {
			return fmt.Errorf("flow %q: %w", keyword, err)
		}
	}
	slog.Debug("Table.Validate: flows valid", "count", len(t.order))
	return nil
}

func validateNode(n *Node, layer, total int, catalog Catalog) error {
	if n.Prompt == "" {
		return fmt.Errorf("%w: empty prompt at layer %d", ErrFlowInvalid, layer)
	}
	if len(n.Branches) == 0 {
		return fmt.Errorf("%w: no options at layer %d", ErrFlowInvalid, layer)
	}
	if len(n.Branches) > MaxQuestionOptions {
		return fmt.Errorf("%w: %d options at layer %d exceeds %d", ErrFlowInvalid, len(n.Branches), layer, MaxQuestionOptions)
	}
	seen := make(map[string]bool, len(n.Branches))
	for _, b := range n.Branches {
		if b.Option == "" {
			return fmt.Errorf("%w: empty option at layer %d", ErrFlowInvalid, layer)
		}
		if seen[b.Option] {
			return fmt.Errorf("%w: %q at layer %d", ErrDuplicateOption, b.Option, layer)
		}
		seen[b.Option] = true

		if layer < total {
			if b.Next == nil {
				return fmt.Errorf("%w: option %q at layer %d has no follow-up question", ErrFlowInvalid, b.Option, layer)
			}
			if err := validateNode(b.Next, layer+1, total, catalog); err != nil {
				return fmt.Errorf("under %q: %w", b.Option, err)
			}
			continue
		}

		if b.Next != nil {
			return fmt.Errorf("%w: option %q at last layer has a follow-up question", ErrFlowInvalid, b.Option)
		}
		if len(b.Articles) == 0 {
			return fmt.Errorf("%w: option %q has no articles", ErrFlowInvalid, b.Option)
		}
		if catalog == nil {
			continue
		}
		for _, id := range b.Articles {
			if _, ok := catalog.Article(id); !ok {
				return fmt.Errorf("%w: %q under %q", ErrUnknownArticle, id, b.Option)
			}
		}
	}
	return nil
}

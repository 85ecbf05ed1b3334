package flow

import (
	"errors"
	"testing"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

func newDefaultTable(t *testing.T) *Table {
	t.Helper()
	table := DefaultTable()
	if err := table.Validate(NewStaticCatalog(DefaultArticles())); err != nil {
		t.Fatalf("default flows invalid: %v", err)
	}
	return table
}

func state(keyword models.DiagnosisKeyword, answers ...string) models.DiagnosisState {
	return models.DiagnosisState{Keyword: keyword, Layer: len(answers) + 1, Answers: answers}
}

func TestDefaultFlowsHaveOptions(t *testing.T) {
	table := newDefaultTable(t)
	for _, k := range models.DiagnosisKeywords {
		def, ok := table.FlowForKeyword(k)
		if !ok || def == nil {
			t.Fatalf("expected flow for %q", k)
		}
		if len(def.Root.Question().Options) == 0 {
			t.Errorf("flow %q has no layer 1 options", k)
		}
		if table.TotalQuestions(k) != 3 {
			t.Errorf("flow %q: expected 3 questions, got %d", k, table.TotalQuestions(k))
		}
	}
}

func TestTotalQuestionsUnknownKeywordDefaults(t *testing.T) {
	table := newDefaultTable(t)
	if got := table.TotalQuestions("no such keyword"); got != DefaultTotalQuestions {
		t.Errorf("expected default %d, got %d", DefaultTotalQuestions, got)
	}
	if _, ok := table.FlowForKeyword("no such keyword"); ok {
		t.Error("expected no flow for unknown keyword")
	}
}

func TestNextQuestionByLayer(t *testing.T) {
	table := newDefaultTable(t)
	k := models.KeywordQuickDiagnosis

	q1, ok := table.NextQuestion(state(k))
	if !ok || q1.Prompt != "Which area do you most want to improve?" {
		t.Fatalf("layer 1: got %+v ok=%v", q1, ok)
	}

	q2, ok := table.NextQuestion(state(k, "on-site operations/efficiency"))
	if !ok || q2.Prompt != "What is the biggest obstacle?" {
		t.Fatalf("layer 2: got %+v ok=%v", q2, ok)
	}

	q3, ok := table.NextQuestion(state(k, "on-site operations/efficiency", "cost/ROI"))
	if !ok || q3.Prompt != "Which cost concern is closest to yours?" {
		t.Fatalf("layer 3: got %+v ok=%v", q3, ok)
	}

	if _, ok := table.NextQuestion(state(k, "on-site operations/efficiency", "cost/ROI", "initial cost/ROI")); ok {
		t.Error("layer 4 must have no next question")
	}
	if _, ok := table.NextQuestion(state(k, "not an option")); ok {
		t.Error("unknown layer 1 answer must have no layer 2 question")
	}
	if _, ok := table.NextQuestion(state("no such keyword")); ok {
		t.Error("unknown keyword must have no question")
	}
}

func TestNextQuestionIsPure(t *testing.T) {
	table := newDefaultTable(t)
	s := state(models.KeywordHospitalAIRisk, "clinical documentation")
	first, _ := table.NextQuestion(s)
	second, _ := table.NextQuestion(s)
	if first.Prompt != second.Prompt || len(first.Options) != len(second.Options) {
		t.Fatalf("expected identical questions, got %+v and %+v", first, second)
	}
	for i := range first.Options {
		if first.Options[i] != second.Options[i] {
			t.Errorf("option %d differs: %q vs %q", i, first.Options[i], second.Options[i])
		}
	}
	if s.Layer != 2 || len(s.Answers) != 1 {
		t.Errorf("state mutated: %+v", s)
	}
}

func TestConclusion(t *testing.T) {
	table := newDefaultTable(t)
	k := models.KeywordQuickDiagnosis

	ids, ok := table.Conclusion(state(k, "on-site operations/efficiency", "cost/ROI", "initial cost/ROI"))
	if !ok || len(ids) == 0 {
		t.Fatalf("expected articles for full path, got %v ok=%v", ids, ok)
	}
	if ids[0] != ArticleAIROIBasics {
		t.Errorf("expected first article %q, got %q", ArticleAIROIBasics, ids[0])
	}

	if _, ok := table.Conclusion(state(k, "on-site operations/efficiency", "cost/ROI")); ok {
		t.Error("conclusion must not resolve before layer 4")
	}
	if _, ok := table.Conclusion(state(k, "on-site operations/efficiency", "cost/ROI", "free lunch")); ok {
		t.Error("conclusion must not resolve for an unknown leaf")
	}
}

func TestEveryLeafHasConclusion(t *testing.T) {
	table := newDefaultTable(t)
	for _, k := range table.Keywords() {
		def, _ := table.FlowForKeyword(k)
		for _, b1 := range def.Root.Branches {
			for _, b2 := range b1.Next.Branches {
				for _, b3 := range b2.Next.Branches {
					ids, ok := table.Conclusion(state(k, b1.Option, b2.Option, b3.Option))
					if !ok || len(ids) == 0 {
						t.Errorf("%q > %q > %q > %q: no conclusion", k, b1.Option, b2.Option, b3.Option)
					}
				}
			}
		}
	}
}

func TestIsValidAnswerRejectsUnlistedOptions(t *testing.T) {
	table := newDefaultTable(t)
	k := models.KeywordQuickDiagnosis
	states := []models.DiagnosisState{
		state(k),
		state(k, "on-site operations/efficiency"),
		state(k, "on-site operations/efficiency", "cost/ROI"),
	}
	for _, s := range states {
		options := table.CurrentOptions(s)
		if len(options) == 0 {
			t.Fatalf("layer %d: no options", s.Layer)
		}
		for _, opt := range options {
			if !table.IsValidAnswer(s, opt) {
				t.Errorf("layer %d: option %q should be valid", s.Layer, opt)
			}
		}
		for _, bad := range []string{"", "hello", "cancel", options[0] + " ", "cost/roi", "quick diagnosis"} {
			if table.IsValidAnswer(s, bad) {
				t.Errorf("layer %d: %q should be invalid", s.Layer, bad)
			}
		}
	}
	// An option from a different layer is not valid here.
	if table.IsValidAnswer(state(k), "cost/ROI") {
		t.Error("layer 2 option must not be accepted at layer 1")
	}
}

func TestNewTableRejectsDuplicateKeyword(t *testing.T) {
	_, err := NewTable(quickDiagnosisFlow(), quickDiagnosisFlow())
	if !errors.Is(err, ErrDuplicateFlow) {
		t.Errorf("expected ErrDuplicateFlow, got %v", err)
	}
}

func TestValidateCatchesBrokenTrees(t *testing.T) {
	catalog := NewStaticCatalog(DefaultArticles())
	cases := []struct {
		name string
		root *Node
		want error
	}{
		{
			name: "missing layer 2",
			root: question("q1", Branch{Option: "a"}),
			want: ErrFlowInvalid,
		},
		{
			name: "too deep",
			root: question("q1", ask("a", question("q2", ask("b", question("q3", ask("c", question("q4", conclude("d", ArticleAIROIBasics)))))))),
			want: ErrFlowInvalid,
		},
		{
			name: "leaf without articles",
			root: question("q1", ask("a", question("q2", ask("b", question("q3", conclude("c")))))),
			want: ErrFlowInvalid,
		},
		{
			name: "unknown article",
			root: question("q1", ask("a", question("q2", ask("b", question("q3", conclude("c", "missing-article")))))),
			want: ErrUnknownArticle,
		},
		{
			name: "duplicate option",
			root: question("q1",
				ask("a", question("q2", ask("b", question("q3", conclude("c", ArticleAIROIBasics))))),
				ask("a", question("q2", ask("b", question("q3", conclude("c", ArticleAIROIBasics))))),
			),
			want: ErrDuplicateOption,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := NewTable(&FlowDefinition{Keyword: "test", Root: tc.root})
			if err != nil {
				t.Fatalf("NewTable: %v", err)
			}
			if err := table.Validate(catalog); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateRejectsUnsupportedDepth(t *testing.T) {
	catalog := NewStaticCatalog(DefaultArticles())
	cases := []struct {
		name  string
		total int
		root  *Node
	}{
		{
			name:  "two questions",
			total: 2,
			root:  question("q1", ask("a", question("q2", conclude("b", ArticleAIROIBasics)))),
		},
		{
			name:  "four questions",
			total: 4,
			root:  question("q1", ask("a", question("q2", ask("b", question("q3", ask("c", question("q4", conclude("d", ArticleAIROIBasics)))))))),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := NewTable(&FlowDefinition{Keyword: "depth", TotalQuestions: tc.total, Root: tc.root})
			if err != nil {
				t.Fatalf("NewTable: %v", err)
			}
			if err := table.Validate(catalog); !errors.Is(err, ErrFlowInvalid) {
				t.Errorf("expected ErrFlowInvalid for %d questions, got %v", tc.total, err)
			}
		})
	}
}

func TestValidateRejectsTooManyOptions(t *testing.T) {
	branches := make([]Branch, MaxQuestionOptions+1)
	for i := range branches {
		branches[i] = conclude(string(rune('a'+i)), ArticleAIROIBasics)
	}
	root := question("q1", ask("x", question("q2", ask("y", question("q3", branches...)))))
	table, err := NewTable(&FlowDefinition{Keyword: "wide", Root: root})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if err := table.Validate(nil); !errors.Is(err, ErrFlowInvalid) {
		t.Errorf("expected ErrFlowInvalid for 13 options, got %v", err)
	}
}

package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Phase names of the diagnosis state machine.
const (
	PhaseAwaitingL1 = "AWAITING_L1"
	PhaseAwaitingL2 = "AWAITING_L2"
	PhaseAwaitingL3 = "AWAITING_L3"
	PhaseComplete   = "COMPLETE"
	PhaseCancelled  = "CANCELLED"

	eventAnswer = "answer"
	eventCancel = "cancel"
)

// User-facing texts for the diagnosis flow.
const (
	CancelledText     = "The diagnosis has been cancelled. Send a diagnosis keyword any time to start again."
	InvalidAnswerText = "Please choose one of the buttons below."
)

var diagnosisEvents = fsm.Events{
	{Name: eventAnswer, Src: []string{PhaseAwaitingL1}, Dst: PhaseAwaitingL2},
	{Name: eventAnswer, Src: []string{PhaseAwaitingL2}, Dst: PhaseAwaitingL3},
	{Name: eventAnswer, Src: []string{PhaseAwaitingL3}, Dst: PhaseComplete},
	{Name: eventCancel, Src: []string{PhaseAwaitingL1, PhaseAwaitingL2, PhaseAwaitingL3}, Dst: PhaseCancelled},
}

var phaseByLayer = map[int]string{
	1: PhaseAwaitingL1,
	2: PhaseAwaitingL2,
	3: PhaseAwaitingL3,
	4: PhaseComplete,
}

var layerByPhase = map[string]int{
	PhaseAwaitingL1: 1,
	PhaseAwaitingL2: 2,
	PhaseAwaitingL3: 3,
	PhaseComplete:   4,
}

// PhaseForLayer names the machine phase for a layer, or "" when out of range.
func PhaseForLayer(layer int) string {
	return phaseByLayer[layer]
}

// newMachine starts a machine at the phase of state. Every transition writes
// the destination layer into layer, so the machine alone decides progress.
func newMachine(state models.DiagnosisState, layer *int) *fsm.FSM {
	return fsm.NewFSM(PhaseForLayer(state.Layer), diagnosisEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			*layer = layerByPhase[e.Dst]
		},
	})
}

// OutcomeKind says what a step did.
type OutcomeKind string

const (
	OutcomeStarted    OutcomeKind = "started"
	OutcomeAdvanced   OutcomeKind = "advanced"
	OutcomeReprompted OutcomeKind = "reprompted"
	OutcomeCompleted  OutcomeKind = "completed"
	OutcomeCancelled  OutcomeKind = "cancelled"
)

// Outcome is the result of one step. State is nil when the diagnosis must be
// cleared from the store.
type Outcome struct {
	Kind     OutcomeKind
	Reply    models.Reply
	State    *models.DiagnosisState
	Final    models.DiagnosisState
	Articles []models.Article
}

// Engine advances diagnosis state through a Table. It holds no per-user state.
type Engine struct {
	table   *Table
	catalog Catalog
	builder *Builder
}

// NewEngine creates an engine over table, resolving conclusions through catalog.
func NewEngine(table *Table, catalog Catalog, builder *Builder) *Engine {
	if builder == nil {
		builder = NewBuilder("")
	}
	return &Engine{table: table, catalog: catalog, builder: builder}
}

// Table returns the flow table the engine walks.
func (e *Engine) Table() *Table { return e.table }

// Builder returns the message builder the engine renders with.
func (e *Engine) Builder() *Builder { return e.builder }

// Start creates the initial state for keyword and renders question 1.
func (e *Engine) Start(keyword models.DiagnosisKeyword) (Outcome, error) {
	reply, ok := e.builder.BuildDiagnosisStartMessage(e.table, keyword)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownKeyword, keyword)
	}
	state := models.NewDiagnosisState(keyword)
	slog.Debug("Engine.Start: diagnosis started", "keyword", keyword)
	return Outcome{Kind: OutcomeStarted, Reply: reply, State: &state}, nil
}

// Advance applies one user input to state. It never fails: invalid answers
// re-prompt, and inconsistent flow data ends the diagnosis with an empty
// conclusion.
func (e *Engine) Advance(ctx context.Context, state models.DiagnosisState, input string) Outcome {
	input = NormalizeInput(input)
	next := state.Clone()
	machine := newMachine(state, &next.Layer)

	if input == models.CancelKeyword {
		if err := machine.Event(ctx, eventCancel); err != nil {
			slog.Warn("Engine.Advance: cancel outside an active phase, clearing anyway", "keyword", state.Keyword, "layer", state.Layer, "error", err)
		}
		slog.Info("Engine.Advance: diagnosis cancelled", "keyword", state.Keyword, "layer", state.Layer, "phase", machine.Current())
		return Outcome{Kind: OutcomeCancelled, Reply: models.TextReply(CancelledText), Final: state.Clone()}
	}

	if state.Consistent() && machine.Current() == PhaseComplete {
		// Every answer is already stored; only the conclusion is outstanding.
		ids, ok := e.table.Conclusion(state)
		if !ok {
			slog.Warn("Engine.Advance: conclusion lookup missed for stored state", "keyword", state.Keyword, "answers", state.Answers)
		}
		return e.conclude(state, ids)
	}

	question, ok := e.table.NextQuestion(state)
	if !ok || !state.Consistent() {
		slog.Warn("Engine.Advance: flow data undefined for state, concluding without results",
			"keyword", state.Keyword, "layer", state.Layer, "answers", len(state.Answers))
		return e.conclude(state, nil)
	}

	if !e.table.IsValidAnswer(state, input) {
		slog.Debug("Engine.Advance: invalid answer, re-prompting", "keyword", state.Keyword, "layer", state.Layer)
		reply := e.builder.BuildQuestionMessage(question, state.Layer, e.table.TotalQuestions(state.Keyword))
		reply.Text = InvalidAnswerText + "\n\n" + reply.Text
		unchanged := state.Clone()
		return Outcome{Kind: OutcomeReprompted, Reply: reply, State: &unchanged}
	}

	if err := machine.Event(ctx, eventAnswer); err != nil {
		slog.Warn("Engine.Advance: state machine rejected answer, concluding without results", "keyword", state.Keyword, "layer", state.Layer, "error", err)
		return e.conclude(state, nil)
	}
	next.Answers = append(next.Answers, input)

	if machine.Current() == PhaseComplete {
		ids, ok := e.table.Conclusion(next)
		if !ok {
			slog.Warn("Engine.Advance: conclusion lookup missed", "keyword", next.Keyword, "answers", next.Answers)
		}
		return e.conclude(next, ids)
	}

	nextQuestion, ok := e.table.NextQuestion(next)
	if !ok {
		slog.Warn("Engine.Advance: next question missing, concluding without results", "keyword", next.Keyword, "layer", next.Layer)
		return e.conclude(next, nil)
	}
	slog.Debug("Engine.Advance: advanced", "keyword", next.Keyword, "layer", next.Layer)
	return Outcome{
		Kind:  OutcomeAdvanced,
		Reply: e.builder.BuildQuestionMessage(nextQuestion, next.Layer, e.table.TotalQuestions(next.Keyword)),
		State: &next,
	}
}

func (e *Engine) conclude(state models.DiagnosisState, ids []models.ArticleID) Outcome {
	var articles []models.Article
	if e.catalog != nil && len(ids) > 0 {
		articles = e.catalog.ArticlesByIDs(ids)
	}
	slog.Info("Engine.conclude: diagnosis complete", "keyword", state.Keyword, "articles", len(articles))
	return Outcome{
		Kind:     OutcomeCompleted,
		Reply:    models.TextReply(e.builder.BuildConclusionMessage(state, articles)),
		Final:    state.Clone(),
		Articles: articles,
	}
}

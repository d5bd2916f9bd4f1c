package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Researcher is the research step.
type Researcher interface {
	Research(ctx context.Context, query string) ([]string, error)
}

// Drafter is the drafting step.
type Drafter interface {
	Draft(ctx context.Context, findings []string) (string, error)
}

// Orchestrator runs Researcher → Drafter for one query at a time per call.
// It only holds references to its collaborators, so one Orchestrator may
// serve concurrent Run calls.
type Orchestrator struct {
	researcher Researcher
	drafter    Drafter
	observer   Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(or *Orchestrator) { or.observer = o }
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(researcher Researcher, drafter Drafter, opts ...Option) *Orchestrator {
	o := &Orchestrator{researcher: researcher, drafter: drafter}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for query and returns the answer.
func (o *Orchestrator) Run(ctx context.Context, query string) (string, error) {
	state, err := o.Execute(ctx, query)
	if err != nil {
		return "", err
	}
	return state.Answer, nil
}

// Execute is Run returning the terminal state. On failure the error is a
// *RunError holding the partial state.
func (o *Orchestrator) Execute(ctx context.Context, query string) (WorkflowState, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return WorkflowState{}, ErrEmptyQuery
	}

	state := NewWorkflowState(query)

	o.transition(ctx, &state, PhaseResearching)
	findings, err := o.researcher.Research(ctx, state.Input)
	if err != nil {
		return state, o.fail(ctx, &state, err)
	}
	state.MergeResearch(ResearchUpdate{ResearchData: findings})

	o.transition(ctx, &state, PhaseDrafting)
	answer, err := o.drafter.Draft(ctx, state.ResearchData)
	if err != nil {
		return state, o.fail(ctx, &state, err)
	}
	if strings.TrimSpace(answer) == "" {
		return state, o.fail(ctx, &state, ErrEmptyAnswer)
	}
	if err := state.SetAnswer(DraftUpdate{Answer: answer}); err != nil {
		return state, o.fail(ctx, &state, fmt.Errorf("set answer: %w", err))
	}

	o.transition(ctx, &state, PhaseDone)
	slog.Info("Research run complete", "findings", len(state.ResearchData), "length", len(state.Answer))
	return state, nil
}

func (o *Orchestrator) transition(ctx context.Context, state *WorkflowState, to Phase) {
	from := state.Phase
	state.Phase = to
	slog.Debug("Pipeline transition", "from", from, "to", to)
	if o.observer != nil {
		o.observer.OnTransition(from, to, state.Snapshot())
	}
	if fn := ProgressFrom(ctx); fn != nil {
		if msg := stageMessage(*state); msg != "" {
			fn(msg)
		}
	}
}

// stageMessage is the progress line announced when a run enters a phase.
func stageMessage(state WorkflowState) string {
	switch state.Phase {
	case PhaseResearching:
		return "Researching..."
	case PhaseDrafting:
		return fmt.Sprintf("Drafting answer from %d finding(s)...", len(state.ResearchData))
	}
	return ""
}

func (o *Orchestrator) fail(ctx context.Context, state *WorkflowState, err error) error {
	phase := state.Phase
	o.transition(ctx, state, PhaseFailed)
	slog.Error("Research run failed", "phase", phase, "err", err)
	return &RunError{Phase: phase, State: state.Snapshot(), Err: err}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

// ErrEmptyQuery is returned by Run for a blank query.
var ErrEmptyQuery = errors.New("research query is empty")

// ErrEmptyAnswer is wrapped when the drafter returns no text.
var ErrEmptyAnswer = errors.New("drafting produced an empty answer")

// RunError is the single failure surfaced by Orchestrator.Run. It carries
// the phase that failed and the partial state for diagnostics.
type RunError struct {
	Phase Phase
	State WorkflowState
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("research run failed while %s: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Kind returns the taxonomy kind of the underlying failure.
func (e *RunError) Kind() schema.Kind { return schema.KindOf(e.Err) }

// Describe renders err as a message fit for an end user. It separates
// unreachable providers from unusable research from the loop safety bound.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyQuery) {
		return "Please enter a research query."
	}
	if errors.Is(err, context.Canceled) {
		return "Research was cancelled before it finished."
	}

	switch schema.KindOf(err) {
	case schema.KindSearchUnavailable:
		return "The search provider could not be reached. Check your network connection and search API key."
	case schema.KindSearchTimeout:
		return "The search provider did not respond in time. Please try again."
	case schema.KindGenerationUnavailable:
		return "The language model provider could not be reached. Check your network connection and API key."
	case schema.KindGenerationTimeout:
		return "The language model did not respond in time. Please try again."
	case schema.KindToolLoopExhausted:
		return "Research stopped: the agent hit its tool-call safety limit without reaching a conclusion."
	case schema.KindUnexpectedToolCall:
		return "Research produced nothing usable: the drafting model asked for a tool instead of writing an answer."
	}
	if errors.Is(err, ErrEmptyAnswer) {
		return "Research produced nothing usable: the drafted answer was empty."
	}
	return "Research failed: " + err.Error()
}

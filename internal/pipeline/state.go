package pipeline

import "errors"

// Phase is a position in the pipeline state machine.
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseResearching Phase = "researching"
	PhaseDrafting    Phase = "drafting"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// errAnswerSet guards the write-once answer.
var errAnswerSet = errors.New("answer already set")

// WorkflowState is the record threaded through one pipeline run.
type WorkflowState struct {
	Input        string   `json:"input" yaml:"input"`
	ResearchData []string `json:"research_data" yaml:"research_data"`
	Answer       string   `json:"answer" yaml:"answer"`
	Phase        Phase    `json:"phase" yaml:"phase"`
}

// NewWorkflowState initializes the state for query.
func NewWorkflowState(query string) WorkflowState {
	return WorkflowState{
		Input:        query,
		ResearchData: []string{},
		Phase:        PhaseCreated,
	}
}

// ResearchUpdate is the partial state produced by the research step.
type ResearchUpdate struct {
	ResearchData []string
}

// DraftUpdate is the partial state produced by the drafting step.
type DraftUpdate struct {
	Answer string
}

// ExtendFindings is the append-only reducer for research_data. It never
// aliases either input.
func ExtendFindings(current, update []string) []string {
	out := make([]string, 0, len(current)+len(update))
	out = append(out, current...)
	return append(out, update...)
}

// MergeResearch folds a research update into s.
func (s *WorkflowState) MergeResearch(u ResearchUpdate) {
	s.ResearchData = ExtendFindings(s.ResearchData, u.ResearchData)
}

// SetAnswer writes the answer. It may succeed only once per state.
func (s *WorkflowState) SetAnswer(u DraftUpdate) error {
	if s.Answer != "" {
		return errAnswerSet
	}
	s.Answer = u.Answer
	return nil
}

// Snapshot returns a copy of s with an independent research slice.
func (s WorkflowState) Snapshot() WorkflowState {
	s.ResearchData = ExtendFindings(nil, s.ResearchData)
	return s
}

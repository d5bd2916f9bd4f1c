package agent

import (
	"time"

	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/tools"
)

// AgentFactory creates the research and drafting steps.
// It holds construction-time dependencies; the steps it returns are
// stateless between calls and safe to share across concurrent runs.
type AgentFactory struct {
	researchProvider schema.Generator
	draftProvider    schema.Generator
	researchSettings schema.AgentSettings // temperature 0, MaxIter bounds the tool loop
	draftSettings    schema.AgentSettings // MaxIter unused
	researchTools    *tools.ToolList
	requireSearch    bool
	callTimeout      time.Duration
}

// FactoryParams groups the AgentFactory inputs.
type FactoryParams struct {
	ResearchProvider schema.Generator
	DraftProvider    schema.Generator
	ResearchSettings schema.AgentSettings
	DraftSettings    schema.AgentSettings
	ResearchTools    *tools.ToolList
	RequireSearch    bool
	// CallTimeout is the deadline applied to every Generator call.
	CallTimeout time.Duration
}

// NewFactory constructs an AgentFactory. DraftProvider defaults to
// ResearchProvider.
func NewFactory(p FactoryParams) *AgentFactory {
	draft := p.DraftProvider
	if draft == nil {
		draft = p.ResearchProvider
	}
	return &AgentFactory{
		researchProvider: p.ResearchProvider,
		draftProvider:    draft,
		researchSettings: p.ResearchSettings,
		draftSettings:    p.DraftSettings,
		researchTools:    p.ResearchTools,
		requireSearch:    p.RequireSearch,
		callTimeout:      p.CallTimeout,
	}
}

// NewResearcher creates the research step.
func (f *AgentFactory) NewResearcher() *Researcher {
	return &Researcher{
		LoopRunner:    newLoopRunner(f.researchProvider, f.researchSettings, f.callTimeout),
		tools:         f.researchTools,
		requireSearch: f.requireSearch,
	}
}

// NewDrafter creates the drafting step.
func (f *AgentFactory) NewDrafter() *Drafter {
	return NewDrafter(f.draftProvider, f.draftSettings, f.callTimeout)
}

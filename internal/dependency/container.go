// Package dependency wires core researchflow services using go.uber.org/dig.
package dependency

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/crystaldolphin/researchflow/internal/agent"
	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/channels"
	"github.com/crystaldolphin/researchflow/internal/config"
	"github.com/crystaldolphin/researchflow/internal/cron"
	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/providers"
	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/search"
	"github.com/crystaldolphin/researchflow/internal/tools"
)

// busBufferSize is the capacity of the inbound and outbound buses.
const busBufferSize = 100

// crawlMaxChars caps crawl_website output handed back to the model.
const crawlMaxChars = 20000

// ServiceContainer holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type ServiceContainer struct {
	orchestrator *pipeline.Orchestrator
	inboundBus   *bus.AgentBus
	outboundBus  *bus.ChannelBus
	loop         *agent.ServiceLoop
	channels     *channels.Manager
	cronSvc      *cron.Service
}

func (c *ServiceContainer) Orchestrator() *pipeline.Orchestrator { return c.orchestrator }
func (c *ServiceContainer) AgentBus() *bus.AgentBus             { return c.inboundBus }
func (c *ServiceContainer) ChannelBus() *bus.ChannelBus         { return c.outboundBus }
func (c *ServiceContainer) ServiceLoop() schema.ServiceLooper   { return c.loop }
func (c *ServiceContainer) Channels() *channels.Manager         { return c.channels }
func (c *ServiceContainer) CronService() *cron.Service          { return c.cronSvc }

// ResearchGenerator and DraftGenerator are distinct types so dig can tell
// the two step models apart.
type ResearchGenerator struct{ schema.Generator }
type DraftGenerator struct{ schema.Generator }

// ResearchTools wraps the closed tool set offered to the research step.
type ResearchTools struct{ *tools.ToolList }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*ServiceContainer, error) {
	d := dig.New()

	ctors := []any{
		func() *config.Config { return cfg },
		newResearchGenerator,
		newDraftGenerator,
		newSearcher,
		newResearchTools,
		newAgentFactory,
		newOrchestrator,
		newAgentBus,
		newChannelBus,
		newServiceLoop,
		newChannelManager,
		newCronService,
	}
	for _, p := range ctors {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *ServiceContainer
	err := d.Invoke(func(
		orch *pipeline.Orchestrator,
		inbound *bus.AgentBus,
		outbound *bus.ChannelBus,
		loop *agent.ServiceLoop,
		mgr *channels.Manager,
		cronSvc *cron.Service,
	) {
		result = &ServiceContainer{
			orchestrator: orch,
			inboundBus:   inbound,
			outboundBus:  outbound,
			loop:         loop,
			channels:     mgr,
			cronSvc:      cronSvc,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newGenerator(cfg *config.Config, model string) (schema.Generator, error) {
	params := cfg.ProviderParams(model)
	if params.ProviderName == "" {
		return nil, fmt.Errorf("no API key configured for model %q: edit %s", model, config.ConfigPath())
	}
	return providers.New(params), nil
}

func newResearchGenerator(cfg *config.Config) (ResearchGenerator, error) {
	g, err := newGenerator(cfg, cfg.Agents.Research.Model)
	return ResearchGenerator{g}, err
}

func newDraftGenerator(cfg *config.Config) (DraftGenerator, error) {
	g, err := newGenerator(cfg, cfg.Agents.DraftModel())
	return DraftGenerator{g}, err
}

func newSearcher(cfg *config.Config) (schema.Searcher, error) {
	return search.New(cfg.Search)
}

func newResearchTools(cfg *config.Config, searcher schema.Searcher) ResearchTools {
	s := cfg.Search
	list := tools.NewRegistryBuilder().
		WithTool(tools.NewSearchTool(searcher, schema.SearchDepth(s.Depth), s.MaxResults, cfg.SearchTimeout())).
		WithTool(tools.NewCrawlTool(searcher, s.CrawlMaxDepth, s.CrawlMaxBreadth, crawlMaxChars, cfg.SearchTimeout())).
		Build()
	return ResearchTools{list}
}

func newAgentFactory(cfg *config.Config, research ResearchGenerator, draft DraftGenerator, reg ResearchTools) *agent.AgentFactory {
	r := cfg.Agents.Research
	dr := cfg.Agents.Draft
	return agent.NewFactory(agent.FactoryParams{
		ResearchProvider: research.Generator,
		DraftProvider:    draft.Generator,
		ResearchSettings: schema.NewAgentSettings(r.Model, r.MaxToolIterations, r.Temperature, r.MaxTokens),
		DraftSettings:    schema.NewAgentSettings(cfg.Agents.DraftModel(), 0, dr.Temperature, dr.MaxTokens),
		ResearchTools:    reg.ToolList,
		RequireSearch:    r.RequireSearch,
		CallTimeout:      cfg.GenerationTimeout(),
	})
}

func newOrchestrator(factory *agent.AgentFactory) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(factory.NewResearcher(), factory.NewDrafter())
}

func newAgentBus() *bus.AgentBus {
	return bus.NewAgentBus(busBufferSize)
}

func newChannelBus() *bus.ChannelBus {
	return bus.NewChannelBus(busBufferSize)
}

func newServiceLoop(cfg *config.Config, inbound *bus.AgentBus, outbound *bus.ChannelBus, orch *pipeline.Orchestrator) *agent.ServiceLoop {
	return agent.NewServiceLoop(inbound, outbound, orch, cfg.Gateway.MaxConcurrentRuns)
}

func newChannelManager(cfg *config.Config, inbound *bus.AgentBus, outbound *bus.ChannelBus) *channels.Manager {
	return channels.NewManager(cfg.Channels, inbound, outbound)
}

func newCronService(cfg *config.Config, orch *pipeline.Orchestrator, outbound *bus.ChannelBus) *cron.Service {
	svc := cron.NewService(cfg.CronStorePath())
	svc.SetRunner(cron.ReportRunner(orch, cfg.ReportDir(), outbound))
	return svc
}

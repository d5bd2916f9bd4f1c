package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/tools"
)

func newTestFactory(gen schema.Generator, searcher schema.Searcher, requireSearch bool) *AgentFactory {
	list := tools.NewRegistryBuilder().
		WithTool(tools.NewSearchTool(searcher, schema.DepthAdvanced, 5, 0)).
		WithTool(tools.NewCrawlTool(searcher, 2, 5, 0, 0)).
		Build()
	return NewFactory(FactoryParams{
		ResearchProvider: gen,
		ResearchSettings: schema.NewAgentSettings("research-model", 5, 0, 1024),
		DraftSettings:    schema.NewAgentSettings("draft-model", 0, 0.3, 1024),
		ResearchTools:    list,
		RequireSearch:    requireSearch,
	})
}

func TestResearcher_SingleFinding(t *testing.T) {
	gen := script(callTools(searchCall("1", "go 1.25 release")), reply("Go 1.25 shipped in August."))
	searcher := &stubSearcher{results: []schema.SearchResult{{Title: "Go 1.25", URL: "https://go.dev/doc/go1.25", Snippet: "release notes"}}}
	r := newTestFactory(gen, searcher, false).NewResearcher()

	findings, err := r.Research(context.Background(), "what is new in go 1.25")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(findings) != 1 || findings[0] != "Go 1.25 shipped in August." {
		t.Errorf("findings = %q", findings)
	}

	first := gen.call(0)
	if len(first.Tools) != 2 {
		t.Errorf("expected 2 tool definitions, got %d", len(first.Tools))
	}
	if first.Opts.Temperature != 0 || first.Opts.Model != "research-model" {
		t.Errorf("unexpected options %+v", first.Opts)
	}
	sys := first.Messages.Messages[0]
	if sys.Role != schema.RoleSystem || !strings.Contains(sys.Content, "research specialist") {
		t.Errorf("unexpected system prompt %q", sys.Content)
	}
	if user := first.Messages.Messages[1].Content; !strings.Contains(user, "what is new in go 1.25") {
		t.Errorf("query missing from task: %q", user)
	}

	toolMsg := gen.call(1).Messages.Messages[3]
	if !strings.Contains(toolMsg.Content, "https://go.dev/doc/go1.25") {
		t.Errorf("search results not fed back: %q", toolMsg.Content)
	}
}

func TestResearcher_SearchTimeoutAborts(t *testing.T) {
	gen := script(callTools(searchCall("1", "q")), reply("unreachable"))
	searcher := &stubSearcher{err: context.DeadlineExceeded}
	r := newTestFactory(gen, searcher, false).NewResearcher()

	_, err := r.Research(context.Background(), "q")
	if !errors.Is(err, schema.ErrSearchTimeout) {
		t.Fatalf("expected SearchTimeout, got %v", err)
	}
}

type countingDrafter struct{ calls int }

func (d *countingDrafter) Draft(context.Context, []string) (string, error) {
	d.calls++
	return "draft", nil
}

func TestPipeline_SearchTimeoutSkipsDraft(t *testing.T) {
	gen := script(callTools(searchCall("1", "q")), reply("unreachable"))
	searcher := &stubSearcher{err: context.DeadlineExceeded}
	drafter := &countingDrafter{}
	orch := pipeline.NewOrchestrator(newTestFactory(gen, searcher, false).NewResearcher(), drafter)

	state, err := orch.Execute(context.Background(), "q")
	if !errors.Is(err, schema.ErrSearchTimeout) {
		t.Fatalf("expected SearchTimeout, got %v", err)
	}
	var runErr *pipeline.RunError
	if !errors.As(err, &runErr) || runErr.Phase != pipeline.PhaseResearching {
		t.Errorf("expected failure in research phase, got %v", err)
	}
	if drafter.calls != 0 {
		t.Errorf("drafter called %d times after a search timeout", drafter.calls)
	}
	if state.Answer != "" || len(state.ResearchData) != 0 {
		t.Errorf("partial state = %+v", state)
	}
}

func TestResearcher_ReportsProgress(t *testing.T) {
	gen := script(callTools(searchCall("1", "rust vs go")), reply("done"))
	r := newTestFactory(gen, &stubSearcher{}, false).NewResearcher()

	var got []string
	ctx := pipeline.WithProgress(context.Background(), func(s string) { got = append(got, s) })
	if _, err := r.Research(ctx, "rust vs go"); err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(got) != 1 || got[0] != `web_search("rust vs go")` {
		t.Errorf("progress = %q", got)
	}
}

func TestResearcher_RequireSearch(t *testing.T) {
	gen := script(reply("guess"), callTools(searchCall("1", "q")), reply("checked"))
	r := newTestFactory(gen, &stubSearcher{}, true).NewResearcher()

	findings, err := r.Research(context.Background(), "q")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if findings[0] != "checked" {
		t.Errorf("findings = %q", findings)
	}
}

func TestFactory_DraftProviderDefaultsToResearch(t *testing.T) {
	gen := script(reply("answer"))
	d := newTestFactory(gen, &stubSearcher{}, false).NewDrafter()
	if _, err := d.Draft(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if gen.callCount() != 1 || gen.call(0).Opts.Model != "draft-model" {
		t.Errorf("drafter did not use the shared provider with draft settings")
	}
}

package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/shared/llmutils"
	"github.com/crystaldolphin/researchflow/internal/tools"
)

// Researcher is the research step: one tool loop over the search tools
// that yields a single finding.
// Constructed by AgentFactory.NewResearcher().
type Researcher struct {
	LoopRunner

	tools         *tools.ToolList
	requireSearch bool
}

var _ pipeline.Researcher = (*Researcher)(nil)

// Research implements pipeline.Researcher. It always returns exactly one
// finding on success: the Generator's terminal completion.
func (a *Researcher) Research(ctx context.Context, query string) ([]string, error) {
	conversation := schema.NewMessages(
		schema.NewSystemMessage(a.buildSystemPrompt()),
		schema.NewUserMessage(buildResearchTask(query)),
	)

	res, err := a.Run(ctx, conversation, a.tools, RunOptions{
		OnProgress:  pipeline.ProgressFrom(ctx),
		RequireTool: a.requireSearch,
	})
	if err != nil {
		return nil, err
	}

	if len(res.ToolsUsed) == 0 {
		slog.Warn("Research finished without any search", "query", llmutils.Truncate(query, 80))
	}
	slog.Info("Research finished", "iterations", res.Iterations, "tools", len(res.ToolsUsed), "length", len(res.Content))

	return []string{res.Content}, nil
}

func (a *Researcher) buildSystemPrompt() string {
	return strings.Join([]string{
		"# Research Specialist",
		"",
		"You are a research specialist. Your job is to gather accurate, current",
		"information about the user's query from the web.",
		"",
		"## Rules",
		"1. Always call web_search at least once before concluding",
		"2. Use crawl_website when one site clearly holds the details you need",
		"3. Rephrase and search again when results are thin or off-topic",
		"4. Keep source URLs next to the facts they support",
		"",
		"When you are done, reply with the collected findings as plain text.",
		"Do not write the final report; another step will synthesize it.",
		"",
		"Available tools: " + strings.Join(a.tools.Names(), ", "),
	}, "\n")
}

func buildResearchTask(query string) string {
	return "Research query: " + query + "\n\nUse the web_search tool. Analyze and collect the relevant data."
}

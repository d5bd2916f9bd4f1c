package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

// chatCall is one recorded Generator request.
type chatCall struct {
	Messages schema.Messages
	Tools    []map[string]any
	Opts     schema.ChatOptions
}

// scriptedGenerator answers each Chat call with the next scripted step.
// The last step repeats once the script runs out.
type scriptedGenerator struct {
	mu    sync.Mutex
	steps []func(ctx context.Context, msgs schema.Messages) (schema.LLMResponse, error)
	calls []chatCall
}

func (g *scriptedGenerator) Chat(ctx context.Context, msgs schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, chatCall{Messages: msgs.Clone(), Tools: tools, Opts: opts})
	i := len(g.calls) - 1
	if i >= len(g.steps) {
		i = len(g.steps) - 1
	}
	step := g.steps[i]
	g.mu.Unlock()
	return step(ctx, msgs)
}

func (g *scriptedGenerator) DefaultModel() string { return "stub-model" }

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *scriptedGenerator) call(i int) chatCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[i]
}

func script(steps ...func(ctx context.Context, msgs schema.Messages) (schema.LLMResponse, error)) *scriptedGenerator {
	return &scriptedGenerator{steps: steps}
}

func reply(text string) func(context.Context, schema.Messages) (schema.LLMResponse, error) {
	return func(context.Context, schema.Messages) (schema.LLMResponse, error) {
		return schema.LLMResponse{Content: text, FinishReason: "stop"}, nil
	}
}

func callTools(calls ...schema.ToolCallRequest) func(context.Context, schema.Messages) (schema.LLMResponse, error) {
	return func(context.Context, schema.Messages) (schema.LLMResponse, error) {
		return schema.LLMResponse{ToolCalls: calls, FinishReason: "tool_calls"}, nil
	}
}

func fail(err error) func(context.Context, schema.Messages) (schema.LLMResponse, error) {
	return func(context.Context, schema.Messages) (schema.LLMResponse, error) {
		return schema.LLMResponse{}, err
	}
}

func searchCall(id, query string) schema.ToolCallRequest {
	return schema.ToolCallRequest{ID: id, Name: "web_search", Arguments: map[string]any{"query": query}}
}

// fakeTool returns a fixed result or error and records its inputs.
type fakeTool struct {
	name   string
	result string
	err    error

	mu   sync.Mutex
	seen []map[string]any
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)
}

func (f *fakeTool) Execute(_ context.Context, params map[string]any) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, params)
	f.mu.Unlock()
	return f.result, f.err
}

// stubSearcher serves canned search results.
type stubSearcher struct {
	results []schema.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, string, schema.SearchOptions) ([]schema.SearchResult, error) {
	return s.results, s.err
}

func (s *stubSearcher) Crawl(context.Context, string, schema.CrawlOptions) (string, error) {
	return "", s.err
}

// msgShape is the comparable projection of a transcript entry.
type msgShape struct {
	Role       string
	ToolCallID string
	IsError    bool
}

func shapes(m schema.Messages) []msgShape {
	out := make([]msgShape, 0, m.Len())
	for _, msg := range m.Messages {
		out = append(out, msgShape{Role: msg.Role, ToolCallID: msg.ToolCallID, IsError: msg.IsError})
	}
	return out
}

func lastMessage(t *testing.T, m schema.Messages) schema.Message {
	t.Helper()
	if m.Len() == 0 {
		t.Fatal("empty transcript")
	}
	return m.Messages[m.Len()-1]
}

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/tools"
)

func baseConversation() schema.Messages {
	return schema.NewMessages(
		schema.NewSystemMessage("system"),
		schema.NewUserMessage("task"),
	)
}

func settings(maxIter int) schema.AgentSettings {
	return schema.NewAgentSettings("stub-model", maxIter, 0, 1024)
}

func TestLoopRunner_TerminalAnswer(t *testing.T) {
	gen := script(reply("  <think>hmm</think>final findings "))
	r := NewLoopRunner(gen, settings(5), 0)

	res, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "final findings" || res.Iterations != 1 || len(res.ToolsUsed) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if call := gen.call(0); call.Tools != nil {
		t.Errorf("expected no tool definitions for an empty tool list, got %d", len(call.Tools))
	}
}

func TestLoopRunner_DefaultBound(t *testing.T) {
	gen := script(callTools(searchCall("1", "q")))
	tool := &fakeTool{name: "web_search", result: "r"}
	r := NewLoopRunner(gen, settings(0), 0)

	if r.MaxIter() != DefaultMaxIter {
		t.Fatalf("MaxIter = %d, want %d", r.MaxIter(), DefaultMaxIter)
	}
	_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{})
	if !errors.Is(err, schema.ErrToolLoopExhausted) {
		t.Fatalf("expected ToolLoopExhausted, got %v", err)
	}
	if gen.callCount() != DefaultMaxIter {
		t.Errorf("generator called %d times, want %d", gen.callCount(), DefaultMaxIter)
	}
}

func TestLoopRunner_ExhaustedCarriesTranscript(t *testing.T) {
	gen := script(callTools(searchCall("1", "q")))
	tool := &fakeTool{name: "web_search", result: "r"}
	r := NewLoopRunner(gen, settings(1), 0)

	_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{})
	var e *schema.Error
	if !errors.As(err, &e) || e.Kind != schema.KindToolLoopExhausted {
		t.Fatalf("expected tagged ToolLoopExhausted, got %v", err)
	}
	if e.Transcript == nil {
		t.Fatal("expected partial transcript")
	}
	want := []msgShape{
		{Role: schema.RoleSystem},
		{Role: schema.RoleUser},
		{Role: schema.RoleAssistant},
		{Role: schema.RoleTool, ToolCallID: "1"},
	}
	if diff := cmp.Diff(want, shapes(*e.Transcript)); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopRunner_ResultsInRequestOrder(t *testing.T) {
	gen := script(
		callTools(searchCall("a", "first"), searchCall("b", "second"), schema.ToolCallRequest{ID: "c", Name: "missing"}),
		reply("done"),
	)
	tool := &fakeTool{name: "web_search", result: "hits"}
	r := NewLoopRunner(gen, settings(5), 0)

	res, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"web_search", "web_search", "missing"}, res.ToolsUsed); diff != "" {
		t.Errorf("tools used mismatch (-want +got):\n%s", diff)
	}

	second := gen.call(1).Messages
	want := []msgShape{
		{Role: schema.RoleSystem},
		{Role: schema.RoleUser},
		{Role: schema.RoleAssistant},
		{Role: schema.RoleTool, ToolCallID: "a"},
		{Role: schema.RoleTool, ToolCallID: "b"},
		{Role: schema.RoleTool, ToolCallID: "c", IsError: true},
	}
	if diff := cmp.Diff(want, shapes(second)); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	if got := second.Messages[5].Content; got != "Error: Tool 'missing' not found" {
		t.Errorf("unknown tool observation = %q", got)
	}
	if len(tool.seen) != 2 || tool.seen[0]["query"] != "first" || tool.seen[1]["query"] != "second" {
		t.Errorf("tool saw %v", tool.seen)
	}
}

func TestLoopRunner_ToolFailureIsObservation(t *testing.T) {
	gen := script(callTools(searchCall("1", "q")), reply("recovered"))
	tool := &fakeTool{name: "web_search", err: schema.NewError(schema.KindSearchUnavailable, "web_search", errors.New("http 502"))}
	r := NewLoopRunner(gen, settings(5), 0)

	res, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "recovered" {
		t.Errorf("content = %q", res.Content)
	}
	last := lastMessage(t, res.Transcript)
	if !last.IsError || !strings.Contains(last.Content, "http 502") {
		t.Errorf("expected error observation, got %+v", last)
	}
}

func TestLoopRunner_ToolTimeoutIsFatal(t *testing.T) {
	gen := script(callTools(searchCall("1", "q")), reply("never"))
	tool := &fakeTool{name: "web_search", err: context.DeadlineExceeded}
	r := NewLoopRunner(gen, settings(5), 0)

	_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{})
	if !errors.Is(err, schema.ErrSearchTimeout) {
		t.Fatalf("expected SearchTimeout, got %v", err)
	}
	if gen.callCount() != 1 {
		t.Errorf("generator called %d times after a fatal timeout", gen.callCount())
	}
	var e *schema.Error
	if errors.As(err, &e) && e.Transcript == nil {
		t.Error("expected transcript on fatal tool timeout")
	}
}

func TestLoopRunner_GeneratorErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", errors.New("connection refused"), schema.ErrGenerationUnavailable},
		{"timeout", context.DeadlineExceeded, schema.ErrGenerationTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewLoopRunner(script(fail(tc.err)), settings(5), 0)
			_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(), RunOptions{})
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoopRunner_PerCallTimeout(t *testing.T) {
	gen := script(func(ctx context.Context, _ schema.Messages) (schema.LLMResponse, error) {
		<-ctx.Done()
		return schema.LLMResponse{}, ctx.Err()
	})
	r := NewLoopRunner(gen, settings(5), 20*time.Millisecond)

	_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(), RunOptions{})
	if !errors.Is(err, schema.ErrGenerationTimeout) {
		t.Fatalf("expected GenerationTimeout, got %v", err)
	}
}

func TestLoopRunner_RequireTool(t *testing.T) {
	gen := script(reply("from memory"), callTools(searchCall("1", "q")), reply("grounded"))
	tool := &fakeTool{name: "web_search", result: "hits"}
	r := NewLoopRunner(gen, settings(5), 0)

	res, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{RequireTool: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "grounded" || res.Iterations != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	second := gen.call(1).Messages
	last := lastMessage(t, second)
	if last.Role != schema.RoleUser || last.Content != requireToolNudge {
		t.Errorf("expected nudge before second call, got %+v", last)
	}
}

func TestLoopRunner_RequireToolCountsAgainstBound(t *testing.T) {
	gen := script(reply("from memory"))
	tool := &fakeTool{name: "web_search", result: "hits"}
	r := NewLoopRunner(gen, settings(2), 0)

	_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{RequireTool: true})
	if !errors.Is(err, schema.ErrToolLoopExhausted) {
		t.Fatalf("expected ToolLoopExhausted, got %v", err)
	}
}

func TestLoopRunner_RequireToolIgnoresUnknownTools(t *testing.T) {
	gen := script(
		callTools(schema.ToolCallRequest{ID: "1", Name: "lookup_memory", Arguments: map[string]any{"query": "q"}}),
		reply("from memory"),
		callTools(searchCall("2", "q")),
		reply("grounded"),
	)
	tool := &fakeTool{name: "web_search", result: "hits"}
	r := NewLoopRunner(gen, settings(5), 0)

	res, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{RequireTool: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "grounded" {
		t.Errorf("content = %q, want the answer given after a real search", res.Content)
	}
	if diff := cmp.Diff([]string{"web_search"}, res.ToolsUsed); diff != "" {
		t.Errorf("tools used (-want +got):\n%s", diff)
	}
	if last := lastMessage(t, gen.call(2).Messages); last.Content != requireToolNudge {
		t.Errorf("expected nudge after the unknown tool round, got %+v", last)
	}
}

func TestLoopRunner_ProgressHints(t *testing.T) {
	gen := script(callTools(searchCall("1", "go generics")), reply("done"))
	tool := &fakeTool{name: "web_search", result: "hits"}
	r := NewLoopRunner(gen, settings(5), 0)

	var hints []string
	_, err := r.Run(context.Background(), baseConversation(), tools.NewToolList(tool), RunOptions{
		OnProgress: func(s string) { hints = append(hints, s) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{`web_search("go generics")`}, hints); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}
}

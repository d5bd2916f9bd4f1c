package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/shared/llmutils"
	"github.com/crystaldolphin/researchflow/internal/tools"
)

// DefaultMaxIter bounds the tool loop when settings leave MaxIter unset.
const DefaultMaxIter = 5

// requireToolNudge is appended when a step that must search answers first.
const requireToolNudge = "You have not used any tool yet. Call web_search before giving your final answer."

// RunOptions tunes one LoopRunner.Run call.
type RunOptions struct {
	// OnProgress receives partial text and tool hints while the loop runs.
	OnProgress func(string)
	// RequireTool rejects a terminal answer until at least one tool call
	// has been executed.
	RequireTool bool
}

// LoopResult is the outcome of a finished tool loop.
type LoopResult struct {
	Content    string
	ToolsUsed  []string
	Iterations int
	Transcript schema.Messages
}

// LoopRunner executes the Generator ↔ tool iteration loop.
// It is embedded by Researcher to share the loop body; it holds no per-run
// state, so one LoopRunner serves concurrent runs.
type LoopRunner struct {
	provider    schema.Generator
	settings    schema.AgentSettings
	callTimeout time.Duration
}

func newLoopRunner(provider schema.Generator, settings schema.AgentSettings, callTimeout time.Duration) LoopRunner {
	if settings.MaxIter <= 0 {
		settings.MaxIter = DefaultMaxIter
	}
	return LoopRunner{provider: provider, settings: settings, callTimeout: callTimeout}
}

// NewLoopRunner returns a standalone LoopRunner.
func NewLoopRunner(provider schema.Generator, settings schema.AgentSettings, callTimeout time.Duration) *LoopRunner {
	r := newLoopRunner(provider, settings, callTimeout)
	return &r
}

// MaxIter returns the enforced iteration bound.
func (r *LoopRunner) MaxIter() int { return r.settings.MaxIter }

// Run drives conversation until the Generator produces a terminal answer.
//
// Tool calls of one round execute in the order received and their results
// are appended in that same order. Failed tool calls are reported back to
// the model as error results; timeouts, Generator failures and an exceeded
// iteration bound abort the loop with a *schema.Error carrying the
// transcript so far.
func (r *LoopRunner) Run(ctx context.Context, conversation schema.Messages, tls *tools.ToolList, opts RunOptions) (LoopResult, error) {
	conversation = conversation.Clone()
	var toolsUsed []string

	for i := 0; i < r.settings.MaxIter; i++ {
		resp, err := r.chat(ctx, conversation, tls)
		if err != nil {
			slog.Error("LLM error", "iteration", i+1, "err", err)
			return LoopResult{}, attachTranscript(err, conversation)
		}

		if !resp.HasToolCalls() {
			content := llmutils.StripThink(resp.Content)
			if opts.RequireTool && len(toolsUsed) == 0 && tls.Len() > 0 {
				slog.Warn("Terminal answer before any tool call, asking for a search", "iteration", i+1)
				conversation.AddAssistant(content, nil)
				conversation.AddUser(requireToolNudge)
				continue
			}
			return LoopResult{
				Content:    content,
				ToolsUsed:  toolsUsed,
				Iterations: i + 1,
				Transcript: conversation,
			}, nil
		}

		if opts.OnProgress != nil {
			if clean := llmutils.StripThink(resp.Content); clean != "" {
				opts.OnProgress(clean)
			}
			opts.OnProgress(llmutils.ToolHint(resp.ToolCalls))
		}

		toolCalls := make([]schema.ToolCall, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			toolCalls = append(toolCalls, schema.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		conversation.AddAssistant(resp.Content, toolCalls)

		for _, tc := range resp.ToolCalls {
			if tls.Get(tc.Name) != nil {
				toolsUsed = append(toolsUsed, tc.Name)
			}
			if err := r.execute(ctx, &conversation, tls, tc); err != nil {
				return LoopResult{}, attachTranscript(err, conversation)
			}
		}
	}

	return LoopResult{}, &schema.Error{
		Kind:       schema.KindToolLoopExhausted,
		Op:         "tool loop",
		Err:        fmt.Errorf("no final answer after %d iterations", r.settings.MaxIter),
		Transcript: &conversation,
	}
}

func (r *LoopRunner) chat(ctx context.Context, conversation schema.Messages, tls *tools.ToolList) (schema.LLMResponse, error) {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	var defs []map[string]any
	if tls.Len() > 0 {
		defs = tls.Definitions()
	}

	resp, err := r.provider.Chat(ctx,
		conversation,
		defs,
		schema.NewChatOptions(r.settings.Model, r.settings.MaxTokens, r.settings.Temperature),
	)
	if err != nil {
		return schema.LLMResponse{}, schema.GenerationError("generate", err)
	}
	return resp, nil
}

// execute runs one tool call and folds its outcome into conversation.
// It returns an error only when the loop must stop.
func (r *LoopRunner) execute(ctx context.Context, conversation *schema.Messages, tls *tools.ToolList, tc schema.ToolCallRequest) error {
	argsJSON, _ := json.Marshal(tc.Arguments)
	slog.Info("Tool call", "name", tc.Name, "args", llmutils.Truncate(string(argsJSON), 200))

	t := tls.Get(tc.Name)
	if t == nil {
		conversation.AddToolError(tc.ID, tc.Name, fmt.Sprintf("Tool '%s' not found", tc.Name))
		return nil
	}

	result, err := t.Execute(ctx, tc.Arguments)
	if err == nil {
		conversation.AddToolResult(tc.ID, tc.Name, result)
		return nil
	}

	if schema.IsTimeout(err) {
		slog.Error("Tool timed out", "name", tc.Name, "err", err)
		return schema.SearchError(tc.Name, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	slog.Warn("Tool failed", "name", tc.Name, "err", err)
	conversation.AddToolError(tc.ID, tc.Name, err.Error())
	return nil
}

// attachTranscript records the conversation on a tagged error that does
// not carry one yet.
func attachTranscript(err error, conversation schema.Messages) error {
	if e, ok := err.(*schema.Error); ok && e.Transcript == nil {
		clone := conversation.Clone()
		e.Transcript = &clone
	}
	return err
}

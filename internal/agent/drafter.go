package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/schema"
)

// draftInstruction frames the synthesis request.
const draftInstruction = "Synthesize this into a structured answer:"

// FindingSeparator joins findings before they reach the drafter.
const FindingSeparator = "\n"

// Drafter is the drafting step: a single tool-less completion over the
// joined findings.
type Drafter struct {
	provider    schema.Generator
	settings    schema.AgentSettings
	callTimeout time.Duration
}

var _ pipeline.Drafter = (*Drafter)(nil)

// NewDrafter constructs a Drafter.
func NewDrafter(provider schema.Generator, settings schema.AgentSettings, callTimeout time.Duration) *Drafter {
	return &Drafter{provider: provider, settings: settings, callTimeout: callTimeout}
}

// Draft implements pipeline.Drafter. The completion text is returned
// verbatim; a tool request is a contract violation.
func (d *Drafter) Draft(ctx context.Context, findings []string) (string, error) {
	conversation := schema.NewMessages(
		schema.NewSystemMessage(draftInstruction),
		schema.NewUserMessage(strings.Join(findings, FindingSeparator)),
	)

	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	resp, err := d.provider.Chat(ctx, conversation, nil,
		schema.NewChatOptions(d.settings.Model, d.settings.MaxTokens, d.settings.Temperature))
	if err != nil {
		return "", schema.GenerationError("draft", err)
	}
	if resp.HasToolCalls() {
		return "", schema.NewError(schema.KindUnexpectedToolCall, "draft",
			fmt.Errorf("generator requested %d tool call(s) with no tools bound", len(resp.ToolCalls)))
	}
	return resp.Content, nil
}

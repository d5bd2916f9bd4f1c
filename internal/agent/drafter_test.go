package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

func TestDrafter_SynthesizesJoinedFindings(t *testing.T) {
	gen := script(func(_ context.Context, msgs schema.Messages) (schema.LLMResponse, error) {
		return schema.LLMResponse{Content: "SUMMARY:" + msgs.Messages[1].Content}, nil
	})
	d := NewDrafter(gen, schema.NewAgentSettings("draft-model", 0, 0.3, 2048), 0)

	answer, err := d.Draft(context.Background(), []string{"fact1", "fact2"})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if answer != "SUMMARY:fact1\nfact2" {
		t.Errorf("answer = %q", answer)
	}

	call := gen.call(0)
	want := []schema.Message{
		schema.NewSystemMessage("Synthesize this into a structured answer:"),
		schema.NewUserMessage("fact1\nfact2"),
	}
	if diff := cmp.Diff(want, call.Messages.Messages); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if call.Tools != nil {
		t.Errorf("drafter must not bind tools, got %d", len(call.Tools))
	}
	if diff := cmp.Diff(schema.NewChatOptions("draft-model", 2048, 0.3), call.Opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestDrafter_ReturnsCompletionVerbatim(t *testing.T) {
	d := NewDrafter(script(reply("  # Answer\n\nbody  ")), settings(0), 0)
	answer, err := d.Draft(context.Background(), []string{"f"})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if answer != "  # Answer\n\nbody  " {
		t.Errorf("answer was altered: %q", answer)
	}
}

func TestDrafter_ToolCallIsUnexpected(t *testing.T) {
	d := NewDrafter(script(callTools(searchCall("1", "more"))), settings(0), 0)
	_, err := d.Draft(context.Background(), []string{"f"})
	if !errors.Is(err, schema.ErrUnexpectedToolCall) {
		t.Fatalf("expected UnexpectedToolCall, got %v", err)
	}
}

func TestDrafter_GeneratorFailure(t *testing.T) {
	d := NewDrafter(script(fail(errors.New("503"))), settings(0), 0)
	_, err := d.Draft(context.Background(), []string{"f"})
	if !errors.Is(err, schema.ErrGenerationUnavailable) {
		t.Fatalf("expected GenerationUnavailable, got %v", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

type researchFunc func(ctx context.Context, query string) ([]string, error)

func (f researchFunc) Research(ctx context.Context, query string) ([]string, error) { return f(ctx, query) }

type draftFunc func(ctx context.Context, findings []string) (string, error)

func (f draftFunc) Draft(ctx context.Context, findings []string) (string, error) { return f(ctx, findings) }

func findings(out ...string) researchFunc {
	return func(context.Context, string) ([]string, error) { return out, nil }
}

func summarize() draftFunc {
	return func(_ context.Context, f []string) (string, error) {
		out := "SUMMARY:"
		for i, s := range f {
			if i > 0 {
				out += "\n"
			}
			out += s
		}
		return out, nil
	}
}

func TestRun_HappyPath(t *testing.T) {
	o := NewOrchestrator(findings("fact1\nfact2"), summarize())

	answer, err := o.Run(context.Background(), "what is RAG?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "SUMMARY:fact1\nfact2" {
		t.Errorf("answer = %q", answer)
	}
}

func TestExecute_TerminalState(t *testing.T) {
	o := NewOrchestrator(findings("only finding"), summarize())

	state, err := o.Execute(context.Background(), "  q  ")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := WorkflowState{
		Input:        "q",
		ResearchData: []string{"only finding"},
		Answer:       "SUMMARY:only finding",
		Phase:        PhaseDone,
	}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_EmptyQuery(t *testing.T) {
	called := false
	o := NewOrchestrator(researchFunc(func(context.Context, string) ([]string, error) {
		called = true
		return nil, nil
	}), summarize())

	_, err := o.Run(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if called {
		t.Error("researcher ran for an empty query")
	}
}

func TestRun_ResearchFailureSkipsDrafter(t *testing.T) {
	drafted := false
	o := NewOrchestrator(
		researchFunc(func(context.Context, string) ([]string, error) {
			return nil, schema.NewError(schema.KindSearchTimeout, "web_search", context.DeadlineExceeded)
		}),
		draftFunc(func(context.Context, []string) (string, error) {
			drafted = true
			return "x", nil
		}),
	)

	_, err := o.Run(context.Background(), "q")
	if drafted {
		t.Fatal("drafter ran after a research failure")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %T", err)
	}
	if runErr.Phase != PhaseResearching || runErr.Kind() != schema.KindSearchTimeout {
		t.Errorf("unexpected run error %+v", runErr)
	}
	if !errors.Is(err, schema.ErrSearchTimeout) {
		t.Error("sentinel not reachable through RunError")
	}
	if runErr.State.Phase != PhaseFailed || runErr.State.Answer != "" {
		t.Errorf("unexpected partial state %+v", runErr.State)
	}
}

func TestRun_DraftFailureKeepsFindings(t *testing.T) {
	o := NewOrchestrator(findings("kept"), draftFunc(func(context.Context, []string) (string, error) {
		return "", schema.NewError(schema.KindUnexpectedToolCall, "draft", errors.New("tool call"))
	}))

	_, err := o.Run(context.Background(), "q")
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.Phase != PhaseDrafting {
		t.Errorf("phase = %s", runErr.Phase)
	}
	if diff := cmp.Diff([]string{"kept"}, runErr.State.ResearchData); diff != "" {
		t.Errorf("findings lost (-want +got):\n%s", diff)
	}
}

func TestRun_EmptyAnswerIsFailure(t *testing.T) {
	o := NewOrchestrator(findings("f"), draftFunc(func(context.Context, []string) (string, error) {
		return " \n ", nil
	}))

	answer, err := o.Run(context.Background(), "q")
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
	if answer != "" {
		t.Errorf("answer = %q", answer)
	}
}

func TestRun_ObserverAndProgress(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	obs := ObserverFunc(func(from, to Phase, _ WorkflowState) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, string(from)+">"+string(to))
	})
	o := NewOrchestrator(findings("a", "b"), summarize(), WithObserver(obs))

	var progress []string
	ctx := WithProgress(context.Background(), func(s string) { progress = append(progress, s) })
	if _, err := o.Run(ctx, "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantTransitions := []string{"created>researching", "researching>drafting", "drafting>done"}
	if diff := cmp.Diff(wantTransitions, transitions); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	wantProgress := []string{"Researching...", "Drafting answer from 2 finding(s)..."}
	if diff := cmp.Diff(wantProgress, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	o := NewOrchestrator(
		researchFunc(func(_ context.Context, q string) ([]string, error) { return []string{q}, nil }),
		summarize(),
	)

	queries := []string{"alpha", "beta", "gamma", "delta"}
	answers := make([]string, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			answers[i], _ = o.Run(context.Background(), q)
		}()
	}
	wg.Wait()

	for i, q := range queries {
		if answers[i] != "SUMMARY:"+q {
			t.Errorf("run %d answer = %q", i, answers[i])
		}
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyQuery, "Please enter a research query."},
		{&RunError{Err: schema.NewError(schema.KindSearchUnavailable, "", errors.New("x"))}, "The search provider could not be reached. Check your network connection and search API key."},
		{&RunError{Err: schema.NewError(schema.KindGenerationTimeout, "", errors.New("x"))}, "The language model did not respond in time. Please try again."},
		{&RunError{Err: schema.NewError(schema.KindToolLoopExhausted, "", errors.New("x"))}, "Research stopped: the agent hit its tool-call safety limit without reaching a conclusion."},
		{&RunError{Err: ErrEmptyAnswer}, "Research produced nothing usable: the drafted answer was empty."},
		{&RunError{Err: fmt.Errorf("chat completions: %w", context.Canceled)}, "Research was cancelled before it finished."},
		{errors.New("boom"), "Research failed: boom"},
	}
	for _, tc := range cases {
		if got := Describe(tc.err); got != tc.want {
			t.Errorf("Describe(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

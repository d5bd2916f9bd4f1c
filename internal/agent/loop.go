package agent

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/shared/llmutils"
)

// DefaultMaxConcurrentRuns bounds in-flight research runs when unset.
const DefaultMaxConcurrentRuns = 4

const helpText = "researchflow\n" +
	"Send any question and I will search the web, then write up an answer.\n\n" +
	"/help - Show this message"

// Pipeline runs one research query to completion.
type Pipeline interface {
	Execute(ctx context.Context, query string) (pipeline.WorkflowState, error)
}

// ServiceLoop is the gateway-side research service.
//
// It reads research requests from the agent bus, runs one pipeline per
// request in its own goroutine, and publishes progress, the answer or a
// readable failure to the channel bus.
type ServiceLoop struct {
	inbound  *bus.AgentBus
	outbound *bus.ChannelBus
	pipeline Pipeline
	sem      chan struct{}
	wg       sync.WaitGroup
}

var _ schema.ServiceLooper = (*ServiceLoop)(nil)

// NewServiceLoop creates a ServiceLoop running at most maxConcurrent
// pipelines at a time.
func NewServiceLoop(inbound *bus.AgentBus, outbound *bus.ChannelBus, p Pipeline, maxConcurrent int) *ServiceLoop {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	return &ServiceLoop{
		inbound:  inbound,
		outbound: outbound,
		pipeline: p,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// Run reads from the inbound bus and processes each request in a goroutine.
// Blocks until ctx is cancelled, then waits for in-flight runs.
func (loop *ServiceLoop) Run(ctx context.Context) error {
	slog.Info("Service loop started", "max_concurrent", cap(loop.sem))
	defer loop.wg.Wait()

	for {
		select {
		case msg := <-loop.inbound.Subscribe():
			select {
			case loop.sem <- struct{}{}:
			case <-ctx.Done():
				slog.Info("Service loop stopping")
				return ctx.Err()
			}
			loop.wg.Add(1)
			go func() {
				defer func() { <-loop.sem; loop.wg.Done() }()
				loop.handleMessage(ctx, msg)
			}()
		case <-ctx.Done():
			slog.Info("Service loop stopping")
			return ctx.Err()
		}
	}
}

// ProcessDirect runs one query outside the bus (CLI, cron) and returns the
// answer, or a readable description of the failure.
func (loop *ServiceLoop) ProcessDirect(ctx context.Context, query, channel, chatID string) string {
	slog.Info("Processing direct query", "channel", channel, "chat_id", chatID, "query", llmutils.Truncate(query, 80))
	state, err := loop.pipeline.Execute(ctx, query)
	if err != nil {
		return pipeline.Describe(err)
	}
	return state.Answer
}

func (loop *ServiceLoop) handleMessage(ctx context.Context, msg bus.AgentBusMessage) {
	slog.Info(
		"Processing message",
		"route", msg.RoutingKey(),
		"sender", msg.SenderId(),
		"query", msg.Preview(),
	)

	if reply, ok := loop.handleSlashCommand(msg); ok {
		loop.publish(ctx, msg, reply, bus.KindAnswer)
		return
	}

	ctx = pipeline.WithProgress(ctx, loop.makeProgressCallback(ctx, msg))
	state, err := loop.pipeline.Execute(ctx, msg.Content())
	if err != nil {
		slog.Warn("Research failed", "route", msg.RoutingKey(), "kind", schema.KindOf(err), "err", err)
		loop.publish(ctx, msg, pipeline.Describe(err), bus.KindError)
		return
	}

	slog.Info("Response", "channel", msg.Channel(), "sender", msg.SenderId(), "length", len(state.Answer))
	loop.publish(ctx, msg, state.Answer, bus.KindAnswer)
}

// handleSlashCommand answers the few commands that do not start a run.
func (loop *ServiceLoop) handleSlashCommand(msg bus.AgentBusMessage) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(msg.Content())) {
	case "/help", "/start":
		return helpText, true
	}
	return "", false
}

func (loop *ServiceLoop) publish(ctx context.Context, msg bus.AgentBusMessage, content string, kind bus.MessageKind) {
	out := bus.NewChannelMessageBuilder(msg.Channel(), msg.ChatId(), content).
		Kind(kind).
		Metadata(maps.Clone(msg.Metadata())).
		Build()
	if err := loop.outbound.PublishContext(ctx, out); err != nil {
		slog.Warn("Outbound dropped", "route", msg.RoutingKey(), "kind", kind, "err", err)
	}
}

// makeProgressCallback pushes stage changes and tool hints to the outbound
// bus so clients can display progress.
func (loop *ServiceLoop) makeProgressCallback(ctx context.Context, msg bus.AgentBusMessage) func(string) {
	return func(content string) {
		loop.publish(ctx, msg, content, bus.KindProgress)
	}
}

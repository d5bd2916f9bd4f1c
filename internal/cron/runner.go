package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/report"
)

// Executor runs one research query to completion.
type Executor interface {
	Execute(ctx context.Context, query string) (pipeline.WorkflowState, error)
}

// ReportRunner returns a RunFunc that researches the job's query, saves the
// answer as a report in reportDir and, for delivering jobs, posts the
// answer (or the failure description) to the job's channel. out may be nil.
func ReportRunner(exec Executor, reportDir string, out *bus.ChannelBus) RunFunc {
	return func(ctx context.Context, job Job) (string, error) {
		state, err := exec.Execute(ctx, job.Payload.Query)
		if err != nil {
			deliver(out, job, pipeline.Describe(err), bus.KindError)
			return "", err
		}

		path, err := report.Save(reportDir, report.Report{
			Query:    state.Input,
			Created:  time.Now(),
			Findings: len(state.ResearchData),
			Source:   "cron:" + job.ID,
			Answer:   state.Answer,
		})
		if err != nil {
			return "", fmt.Errorf("save report: %w", err)
		}
		slog.Info("cron: report written", "job", job.ID, "path", path)

		deliver(out, job, state.Answer, bus.KindAnswer)
		return path, nil
	}
}

func deliver(out *bus.ChannelBus, job Job, content string, kind bus.MessageKind) {
	if out == nil || !job.Payload.Deliver || job.Payload.Channel == nil || job.Payload.To == nil {
		return
	}
	out.Publish(bus.NewChannelMessageBuilder(bus.Channel(*job.Payload.Channel), *job.Payload.To, content).
		Kind(kind).
		Build())
}

package schema

import "context"

// AgentSettings are the per-step Generator settings.
type AgentSettings struct {
	Model       string
	MaxIter     int
	Temperature float64
	MaxTokens   int
}

func NewAgentSettings(model string, maxIter int, temperature float64, maxTokens int) AgentSettings {
	return AgentSettings{
		Model:       model,
		MaxIter:     maxIter,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// ServiceLooper is the gateway-side research service.
type ServiceLooper interface {
	// ProcessDirect runs one research query outside the bus (CLI, cron)
	// and returns the rendered reply text.
	ProcessDirect(ctx context.Context, query, channel, chatID string) string
	// Run consumes the inbound bus until ctx is cancelled.
	Run(ctx context.Context) error
}

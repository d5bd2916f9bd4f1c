package channels

import (
	"context"

	"github.com/crystaldolphin/researchflow/internal/bus"
)

// Channel is a chat front end that turns user messages into research
// requests and delivers answers back.
type Channel interface {
	Name() bus.Channel
	// Start blocks until ctx is cancelled or the channel fails.
	Start(ctx context.Context) error
	Send(ctx context.Context, msg bus.ChannelMessage) error
}

package bus

import "context"

// AgentBus carries research requests from channels → service loop.
// Channel adapters call Publish; the service loop reads via Subscribe.
type AgentBus struct {
	ch chan AgentBusMessage
}

func NewAgentBus(bufSize int) *AgentBus {
	return &AgentBus{ch: make(chan AgentBusMessage, bufSize)}
}

// Publish delivers a request to the service loop.
func (b *AgentBus) Publish(msg AgentBusMessage) {
	b.ch <- msg
}

// PublishContext is Publish that gives up when ctx is done.
func (b *AgentBus) PublishContext(ctx context.Context, msg AgentBusMessage) error {
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a receive-only view of the inbound channel.
func (b *AgentBus) Subscribe() <-chan AgentBusMessage {
	return b.ch
}

package bus

import "context"

// ChannelBus carries replies from the service loop → channels.
// The service loop calls Publish; the channel manager reads via Subscribe.
type ChannelBus struct {
	ch chan ChannelMessage
}

func NewChannelBus(bufSize int) *ChannelBus {
	return &ChannelBus{ch: make(chan ChannelMessage, bufSize)}
}

// Publish delivers a reply to the channel manager.
func (b *ChannelBus) Publish(msg ChannelMessage) {
	b.ch <- msg
}

// PublishContext is Publish that gives up when ctx is done.
func (b *ChannelBus) PublishContext(ctx context.Context, msg ChannelMessage) error {
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a receive-only view of the outbound channel.
func (b *ChannelBus) Subscribe() <-chan ChannelMessage {
	return b.ch
}

package channels

import (
	"context"
	"log/slog"
	"sort"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/config/channel"
)

// Manager owns all enabled channels and routes outbound messages.
type Manager struct {
	channels   map[bus.Channel]Channel
	channelBus *bus.ChannelBus
}

// NewManager creates a Manager and initialises all enabled channels.
func NewManager(cfg channel.ChannelsConfig, inbound *bus.AgentBus, outbound *bus.ChannelBus) *Manager {
	m := &Manager{
		channels:   make(map[bus.Channel]Channel),
		channelBus: outbound,
	}

	if cfg.Telegram.Enabled {
		m.Add(NewTelegramChannel(cfg.Telegram, inbound))
	}
	if cfg.Slack.Enabled {
		m.Add(NewSlackChannel(cfg.Slack, inbound))
	}
	if cfg.WebSocket.Enabled {
		m.Add(NewWebSocketChannel(cfg.WebSocket, inbound))
	}
	return m
}

// Add registers ch, replacing any channel with the same name.
func (m *Manager) Add(ch Channel) {
	m.channels[ch.Name()] = ch
	slog.Info("Channel enabled", "name", ch.Name())
}

// EnabledChannels returns the names of all enabled channels, sorted.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

// StartAll starts all channels concurrently and dispatches outbound messages.
// Blocks until ctx is cancelled.
func (m *Manager) StartAll(ctx context.Context) error {
	go m.dispatchOutbound(ctx)

	for name, ch := range m.channels {
		go func(n bus.Channel, c Channel) {
			slog.Info("Starting channel", "name", n)
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Channel exited with error", "name", n, "err", err)
			}
		}(name, ch)
	}

	<-ctx.Done()
	return ctx.Err()
}

// dispatchOutbound routes each outbound message to its channel's Send.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.channelBus.Subscribe():
			m.deliver(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) deliver(ctx context.Context, msg bus.ChannelMessage) {
	ch, ok := m.channels[msg.Channel()]
	if !ok {
		slog.Debug("Unknown channel for outbound message", "channel", msg.Channel())
		return
	}
	if err := ch.Send(ctx, msg); err != nil {
		slog.Error("Send error", "route", msg.RoutingKey(), "kind", msg.Kind(), "err", err)
	}
}

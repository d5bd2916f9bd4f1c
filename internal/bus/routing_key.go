package bus

import (
	"fmt"
	"strings"
)

// deliverable lists the channels a reply can be routed to.
var deliverable = map[Channel]bool{
	ChannelTelegram:  true,
	ChannelSlack:     true,
	ChannelWebSocket: true,
}

// RoutingKey names one conversation as "<channel>:<chat id>". Chat IDs may
// contain colons of their own (Slack "channel:thread_ts").
func RoutingKey(channel Channel, chatId string) string {
	if chatId == "" {
		return string(channel)
	}
	return string(channel) + ":" + chatId
}

// ParseRoutingKey splits a key built by RoutingKey into a deliverable
// channel and a non-empty chat ID.
func ParseRoutingKey(key string) (Channel, string, error) {
	name, chatId, _ := strings.Cut(strings.TrimSpace(key), ":")
	channel := Channel(strings.ToLower(name))
	if !deliverable[channel] {
		return "", "", fmt.Errorf("routing key %q: unknown channel %q (want telegram, slack or websocket)", key, name)
	}
	if chatId == "" {
		return "", "", fmt.Errorf("routing key %q: missing chat id", key)
	}
	return channel, chatId, nil
}

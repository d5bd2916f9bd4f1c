// Package bus defines the messages that flow between chat channels and the
// research service loop.
package bus

import "time"

const SenderIdCLI string = "user"

// AgentBusMessage is a research request received from a channel. Content is
// the query text.
type AgentBusMessage struct {
	channel   Channel
	chatId    string
	senderId  string
	content   string
	timestamp time.Time
	metadata  map[string]any // channel-specific extra data (message_id, thread_ts, …)
}

// NewAgentBusMessage creates a request with Timestamp set to now.
func NewAgentBusMessage(channel Channel, senderId, chatId, content string) AgentBusMessage {
	return AgentBusMessage{
		channel:   channel,
		senderId:  senderId,
		chatId:    chatId,
		content:   content,
		timestamp: time.Now(),
	}
}

func (m AgentBusMessage) ChatId() string                 { return m.chatId }
func (m AgentBusMessage) SenderId() string               { return m.senderId }
func (m AgentBusMessage) Content() string                { return m.content }
func (m AgentBusMessage) Channel() Channel               { return m.channel }
func (m AgentBusMessage) Timestamp() time.Time           { return m.timestamp }
func (m AgentBusMessage) Metadata() map[string]any       { return m.metadata }
func (m *AgentBusMessage) SetMetadata(md map[string]any) { m.metadata = md }

// RoutingKey identifies the conversation the request came from.
func (m AgentBusMessage) RoutingKey() string {
	return RoutingKey(m.channel, m.chatId)
}

// Preview returns a short snippet of the content for logging.
func (m AgentBusMessage) Preview() string {
	preview := m.content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return preview
}

package bus

// MessageKind tells a channel how to present an outbound message.
type MessageKind string

const (
	KindAnswer   MessageKind = "answer"   // final research answer
	KindProgress MessageKind = "progress" // stage change or tool hint
	KindError    MessageKind = "error"    // readable failure description
)

// ChannelMessage is a reply to be sent back through a channel.
type ChannelMessage struct {
	channel  Channel
	chatId   string
	content  string
	kind     MessageKind
	metadata map[string]any // channel-specific hints (thread_ts, message_id, …)
}

func (m ChannelMessage) Channel() Channel         { return m.channel }
func (m ChannelMessage) ChatId() string           { return m.chatId }
func (m ChannelMessage) Content() string          { return m.content }
func (m ChannelMessage) Metadata() map[string]any { return m.metadata }

// RoutingKey identifies the conversation the reply goes to.
func (m ChannelMessage) RoutingKey() string { return RoutingKey(m.channel, m.chatId) }

// Kind defaults to KindAnswer.
func (m ChannelMessage) Kind() MessageKind {
	if m.kind == "" {
		return KindAnswer
	}
	return m.kind
}

func NewChannelMessage(channel Channel, chatId, content string) ChannelMessage {
	return ChannelMessage{
		channel: channel,
		chatId:  chatId,
		content: content,
	}
}

type ChannelMessageBuilder struct {
	msg ChannelMessage
}

func NewChannelMessageBuilder(channel Channel, chatId, content string) *ChannelMessageBuilder {
	return &ChannelMessageBuilder{msg: NewChannelMessage(channel, chatId, content)}
}

func (b *ChannelMessageBuilder) Kind(kind MessageKind) *ChannelMessageBuilder {
	b.msg.kind = kind
	return b
}

func (b *ChannelMessageBuilder) Metadata(md map[string]any) *ChannelMessageBuilder {
	b.msg.metadata = md
	return b
}

func (b *ChannelMessageBuilder) Build() ChannelMessage {
	return b.msg
}

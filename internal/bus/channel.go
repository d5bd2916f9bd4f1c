package bus

type Channel string

const (
	ChannelTelegram  Channel = "telegram"
	ChannelSlack     Channel = "slack"
	ChannelWebSocket Channel = "websocket"
	ChannelCLI       Channel = "cli"
	ChannelCron      Channel = "cron"
	ChannelSystem    Channel = "system"
)

type ChatId string

const (
	ChatIdDirect ChatId = "direct"
)

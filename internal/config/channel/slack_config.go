package channel

// SlackConfig configures the Slack channel (Socket Mode).
type SlackConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	BotToken       string   `json:"botToken" yaml:"botToken"`
	AppToken       string   `json:"appToken" yaml:"appToken"`
	ReplyInThread  bool     `json:"replyInThread" yaml:"replyInThread"`
	ReactEmoji     string   `json:"reactEmoji" yaml:"reactEmoji"`
	GroupPolicy    string   `json:"groupPolicy" yaml:"groupPolicy"` // "mention", "open" or "allowlist"
	GroupAllowFrom []string `json:"groupAllowFrom" yaml:"groupAllowFrom"`
	AllowFrom      []string `json:"allowFrom" yaml:"allowFrom"`
}

func DefaultSlackConfig() SlackConfig {
	return SlackConfig{
		ReplyInThread:  true,
		ReactEmoji:     "mag",
		GroupPolicy:    "mention",
		GroupAllowFrom: []string{},
		AllowFrom:      []string{},
	}
}

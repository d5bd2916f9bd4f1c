package channels

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/config/channel"
)

const telegramMaxMessage = 4000

// TelegramChannel implements the Telegram bot via long polling.
type TelegramChannel struct {
	Base
	cfg channel.TelegramConfig
	bot *tgbotapi.BotAPI

	mu     sync.Mutex
	typing map[int64]context.CancelFunc // chats with a research run in flight
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(cfg channel.TelegramConfig, inbound *bus.AgentBus) *TelegramChannel {
	return &TelegramChannel{
		Base:   NewBase(bus.ChannelTelegram, inbound, cfg.AllowFrom),
		cfg:    cfg,
		typing: make(map[int64]context.CancelFunc),
	}
}

func (t *TelegramChannel) Name() bus.Channel { return bus.ChannelTelegram }

func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}
	client, err := t.httpClient()
	if err != nil {
		return err
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = bot
	slog.Info("Telegram connected", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go t.handleUpdate(ctx, update)
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			t.stopAllTyping()
			return ctx.Err()
		}
	}
}

func (t *TelegramChannel) httpClient() (*http.Client, error) {
	if t.cfg.Proxy == "" {
		return &http.Client{Timeout: 60 * time.Second}, nil
	}
	proxy, err := url.Parse(t.cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("telegram: parse proxy: %w", err)
	}
	return &http.Client{
		Timeout:   60 * time.Second,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxy)},
	}, nil
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	senderID := fmt.Sprintf("%d", msg.From.ID)
	if msg.From.UserName != "" {
		senderID = senderID + "|" + msg.From.UserName
	}
	chatID := fmt.Sprintf("%d", msg.Chat.ID)

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}

	metadata := map[string]any{
		"message_id": msg.MessageID,
		"user_id":    msg.From.ID,
		"username":   msg.From.UserName,
		"is_group":   msg.Chat.Type != "private",
	}

	if t.HandleMessage(ctx, senderID, chatID, content, metadata) {
		t.startTyping(ctx, msg.Chat.ID)
	}
}

// startTyping keeps the "typing" indicator alive until the answer for
// chatID is delivered.
func (t *TelegramChannel) startTyping(ctx context.Context, chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.typing[chatID]; ok {
		return
	}
	typingCtx, cancel := context.WithCancel(ctx)
	t.typing[chatID] = cancel
	go t.sendTypingLoop(typingCtx, chatID)
}

func (t *TelegramChannel) stopTyping(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.typing[chatID]; ok {
		cancel()
		delete(t.typing, chatID)
	}
}

func (t *TelegramChannel) stopAllTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, cancel := range t.typing {
		cancel()
		delete(t.typing, id)
	}
}

func (t *TelegramChannel) sendTypingLoop(ctx context.Context, chatID int64) {
	for {
		if t.bot != nil {
			action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
			_, _ = t.bot.Request(action)
		}
		select {
		case <-time.After(4 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (t *TelegramChannel) Send(_ context.Context, msg bus.ChannelMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram: bot not running")
	}
	chatID, err := parseChatID(msg.ChatId())
	if err != nil {
		return err
	}

	content := msg.Content()
	switch msg.Kind() {
	case bus.KindProgress:
		// The typing indicator already covers stage changes.
		return nil
	case bus.KindError:
		t.stopTyping(chatID)
		content = "⚠️ " + content
	default:
		t.stopTyping(chatID)
	}
	if content == "" {
		return nil
	}

	var replyMsgID int
	if t.cfg.ReplyToMessage {
		replyMsgID = metadataInt(msg.Metadata(), "message_id")
	}

	for _, chunk := range splitMessage(content, telegramMaxMessage) {
		m := tgbotapi.NewMessage(chatID, markdownToTelegramHTML(chunk))
		m.ParseMode = tgbotapi.ModeHTML
		m.ReplyToMessageID = replyMsgID
		if _, err := t.bot.Send(m); err != nil {
			slog.Debug("Telegram HTML send failed, retrying as plain text", "err", err)
			plain := tgbotapi.NewMessage(chatID, chunk)
			plain.ReplyToMessageID = replyMsgID
			if _, err := t.bot.Send(plain); err != nil {
				return fmt.Errorf("telegram: send: %w", err)
			}
		}
	}
	return nil
}

func metadataInt(md map[string]any, key string) int {
	switch v := md[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func parseChatID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid chat_id: %s", s)
	}
	return id, nil
}

// Markdown → Telegram HTML.

var (
	reTGCodeBlock  = regexp.MustCompile("(?s)```[\\w]*\\n?([\\s\\S]*?)```")
	reTGInlineCode = regexp.MustCompile("`([^`]+)`")
	reTGHeader     = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reTGBlockquote = regexp.MustCompile(`(?m)^>\s*(.*)$`)
	reTGLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reTGBold1      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reTGBold2      = regexp.MustCompile(`__(.+?)__`)
	reTGItalic     = regexp.MustCompile(`(^|[^a-zA-Z0-9])_([^_]+)_([^a-zA-Z0-9]|$)`)
	reTGStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reTGBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// markdownToTelegramHTML converts the Markdown an LLM typically writes into
// the small HTML subset Telegram accepts. Headers become bold lines.
func markdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var codeBlocks []string
	text = reTGCodeBlock.ReplaceAllStringFunc(text, func(m string) string {
		groups := reTGCodeBlock.FindStringSubmatch(m)
		codeBlocks = append(codeBlocks, groups[1])
		return fmt.Sprintf("\x00CB%d\x00", len(codeBlocks)-1)
	})

	var inlineCodes []string
	text = reTGInlineCode.ReplaceAllStringFunc(text, func(m string) string {
		groups := reTGInlineCode.FindStringSubmatch(m)
		inlineCodes = append(inlineCodes, groups[1])
		return fmt.Sprintf("\x00IC%d\x00", len(inlineCodes)-1)
	})

	text = reTGHeader.ReplaceAllString(text, "**$1**")
	text = reTGBlockquote.ReplaceAllString(text, "$1")

	text = htmlEscape(text)

	text = reTGLink.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = reTGBold1.ReplaceAllString(text, "<b>$1</b>")
	text = reTGBold2.ReplaceAllString(text, "<b>$1</b>")
	text = reTGItalic.ReplaceAllString(text, "$1<i>$2</i>$3")
	text = reTGStrike.ReplaceAllString(text, "<s>$1</s>")
	text = reTGBullet.ReplaceAllString(text, "• ")

	for i, code := range inlineCodes {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00IC%d\x00", i),
			"<code>"+htmlEscape(code)+"</code>")
	}
	for i, code := range codeBlocks {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00CB%d\x00", i),
			"<pre><code>"+htmlEscape(code)+"</code></pre>")
	}
	return text
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

package channels

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/config/channel"
)

const (
	slackPolicyOpen      = "open"
	slackPolicyMention   = "mention"
	slackPolicyAllowlist = "allowlist"
)

// SlackChannel implements Slack via Socket Mode.
type SlackChannel struct {
	Base
	cfg       channel.SlackConfig
	webClient *slackgo.Client
	smClient  *socketmode.Client
	botUserID string
	mention   *regexp.Regexp
}

func NewSlackChannel(cfg channel.SlackConfig, inbound *bus.AgentBus) *SlackChannel {
	return &SlackChannel{
		Base: NewBase(bus.ChannelSlack, inbound, cfg.AllowFrom),
		cfg:  cfg,
	}
}

func (s *SlackChannel) Name() bus.Channel { return bus.ChannelSlack }

func (s *SlackChannel) Start(ctx context.Context) error {
	if s.cfg.BotToken == "" || s.cfg.AppToken == "" {
		return fmt.Errorf("slack: bot/app token not configured")
	}

	s.webClient = slackgo.New(s.cfg.BotToken,
		slackgo.OptionAppLevelToken(s.cfg.AppToken))

	resp, err := s.webClient.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	s.botUserID = resp.UserID
	s.mention = regexp.MustCompile(`<@` + regexp.QuoteMeta(s.botUserID) + `>\s*`)
	slog.Info("Slack connected", "bot_user_id", s.botUserID)

	s.smClient = socketmode.New(s.webClient)

	go s.smClient.RunContext(ctx) //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.smClient.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, evt)
		}
	}
}

func (s *SlackChannel) handleEvent(ctx context.Context, evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	if evt.Request != nil {
		s.smClient.Ack(*evt.Request)
	}
	cb, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if cb.InnerEvent.Type != "message" && cb.InnerEvent.Type != "app_mention" {
		return
	}
	s.handleInnerEvent(ctx, cb.InnerEvent)
}

// slackEvent is the subset of a message or app_mention event we route on.
type slackEvent struct {
	Type        string
	User        string
	Channel     string
	Text        string
	Subtype     string
	ChannelType string
	TS          string
	ThreadTS    string
}

func parseSlackEvent(ev slackevents.EventsAPIInnerEvent) (slackEvent, bool) {
	switch d := ev.Data.(type) {
	case *slackevents.MessageEvent:
		return slackEvent{
			Type: ev.Type, User: d.User, Channel: d.Channel, Text: d.Text,
			Subtype: d.SubType, ChannelType: d.ChannelType,
			TS: d.TimeStamp, ThreadTS: d.ThreadTimeStamp,
		}, true
	case *slackevents.AppMentionEvent:
		return slackEvent{
			Type: ev.Type, User: d.User, Channel: d.Channel, Text: d.Text,
			TS: d.TimeStamp, ThreadTS: d.ThreadTimeStamp,
		}, true
	case map[string]interface{}:
		str := func(k string) string { v, _ := d[k].(string); return v }
		return slackEvent{
			Type: ev.Type, User: str("user"), Channel: str("channel"), Text: str("text"),
			Subtype: str("subtype"), ChannelType: str("channel_type"),
			TS: str("ts"), ThreadTS: str("thread_ts"),
		}, true
	}
	return slackEvent{}, false
}

func (s *SlackChannel) handleInnerEvent(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	ev, ok := parseSlackEvent(inner)
	if !ok || !s.accepts(ev) {
		return
	}

	text := s.stripMention(ev.Text)
	threadTS := ev.ThreadTS
	if s.cfg.ReplyInThread && threadTS == "" {
		threadTS = ev.TS
	}

	if s.webClient != nil && ev.TS != "" && s.cfg.ReactEmoji != "" {
		_ = s.webClient.AddReactionContext(ctx, s.cfg.ReactEmoji, slackgo.ItemRef{
			Channel:   ev.Channel,
			Timestamp: ev.TS,
		})
	}

	s.HandleMessage(ctx, ev.User, ev.Channel, text, map[string]any{
		"slack": map[string]any{
			"thread_ts":    threadTS,
			"channel_type": ev.ChannelType,
		},
	})
}

// accepts decides whether an event should become a research request.
func (s *SlackChannel) accepts(ev slackEvent) bool {
	if ev.Subtype != "" || ev.User == "" || ev.Channel == "" {
		return false
	}
	if ev.User == s.botUserID {
		return false
	}
	// A mention arrives as both message and app_mention; keep the latter.
	if ev.Type == "message" && s.botUserID != "" && strings.Contains(ev.Text, "<@"+s.botUserID+">") {
		return false
	}
	if ev.ChannelType == "im" {
		return true
	}
	return s.shouldRespond(ev.Type, ev.Text, ev.Channel)
}

func (s *SlackChannel) shouldRespond(evType, text, channel string) bool {
	switch s.cfg.GroupPolicy {
	case slackPolicyOpen:
		return true
	case slackPolicyMention:
		if evType == "app_mention" {
			return true
		}
		return s.botUserID != "" && strings.Contains(text, "<@"+s.botUserID+">")
	case slackPolicyAllowlist:
		return slices.Contains(s.cfg.GroupAllowFrom, channel)
	}
	return false
}

func (s *SlackChannel) stripMention(text string) string {
	if s.mention == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(s.mention.ReplaceAllString(text, ""))
}

func (s *SlackChannel) Send(ctx context.Context, msg bus.ChannelMessage) error {
	if s.webClient == nil {
		return fmt.Errorf("slack: client not running")
	}
	if msg.Kind() == bus.KindProgress {
		return nil
	}
	meta := map[string]any{}
	if m, ok := msg.Metadata()["slack"].(map[string]any); ok {
		meta = m
	}
	threadTS, _ := meta["thread_ts"].(string)
	channelType, _ := meta["channel_type"].(string)

	content := msg.Content()
	if msg.Kind() == bus.KindError {
		content = ":warning: " + content
	}

	options := []slackgo.MsgOption{slackgo.MsgOptionText(content, false)}
	if threadTS != "" && channelType != "im" {
		options = append(options, slackgo.MsgOptionTS(threadTS))
	}

	_, _, err := s.webClient.PostMessageContext(ctx, msg.ChatId(), options...)
	return err
}

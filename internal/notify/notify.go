// Package notify delivers plan-change notifications to chat platforms.
// Delivery is best-effort: a failed notification never fails the apply
// that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/stridehq/stride/internal/config"
)

// Notifier sends one plain-text notification.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// slackClient abstracts the Slack API method we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts to a fixed Slack channel.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack creates a Slack notifier from a bot token and channel id.
func NewSlack(botToken, channel string) *Slack {
	return &Slack{client: slackapi.New(botToken), channel: channel}
}

// Send posts the text to the configured channel.
func (s *Slack) Send(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

// discordSender abstracts the discordgo method we use.
type discordSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts to a fixed Discord channel.
type Discord struct {
	session discordSender
	channel string
}

// NewDiscord creates a Discord notifier from a bot token and channel id.
func NewDiscord(botToken, channel string) (*Discord, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &Discord{session: session, channel: channel}, nil
}

// Send posts the text to the configured channel.
func (d *Discord) Send(ctx context.Context, text string) error {
	if _, err := d.session.ChannelMessageSend(d.channel, text); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

// Multi fans a notification out to every configured target, logging
// failures instead of returning them.
type Multi struct {
	targets []Notifier
	log     *slog.Logger
}

// NewMulti bundles notifiers. A nil logger falls back to slog.Default.
func NewMulti(log *slog.Logger, targets ...Notifier) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{targets: targets, log: log}
}

// Send delivers to every target. Always returns nil.
func (m *Multi) Send(ctx context.Context, text string) error {
	for _, t := range m.targets {
		if err := t.Send(ctx, text); err != nil {
			m.log.Warn("notification failed", "err", err)
		}
	}
	return nil
}

// FromConfig builds the notifier fan-out for the configured targets. With
// nothing configured the result sends to zero targets.
func FromConfig(nc config.NotifyConfig, log *slog.Logger) (*Multi, error) {
	var targets []Notifier
	if nc.SlackToken != "" {
		targets = append(targets, NewSlack(nc.SlackToken, nc.SlackChannel))
	}
	if nc.DiscordToken != "" {
		d, err := NewDiscord(nc.DiscordToken, nc.DiscordChannel)
		if err != nil {
			return nil, err
		}
		targets = append(targets, d)
	}
	return NewMulti(log, targets...), nil
}

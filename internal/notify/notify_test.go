package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/stridehq/stride/internal/config"
)

type fakeSlack struct {
	channel string
	count   int
	err     error
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.channel = channelID
	f.count++
	return "", "", f.err
}

type fakeDiscord struct {
	channel string
	content string
	err     error
}

func (f *fakeDiscord) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.content = content
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{Content: content}, nil
}

func TestSlackSend(t *testing.T) {
	fake := &fakeSlack{}
	s := &Slack{client: fake, channel: "C123"}

	if err := s.Send(context.Background(), "plan updated"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fake.channel != "C123" || fake.count != 1 {
		t.Errorf("unexpected post: %+v", fake)
	}

	fake.err = fmt.Errorf("channel_not_found")
	if err := s.Send(context.Background(), "again"); err == nil {
		t.Error("expected error from failed post")
	}
}

func TestDiscordSend(t *testing.T) {
	fake := &fakeDiscord{}
	d := &Discord{session: fake, channel: "987"}

	if err := d.Send(context.Background(), "plan updated"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fake.channel != "987" || fake.content != "plan updated" {
		t.Errorf("unexpected send: %+v", fake)
	}
}

type failingNotifier struct{ sent int }

func (f *failingNotifier) Send(ctx context.Context, text string) error {
	f.sent++
	return fmt.Errorf("boom")
}

func TestMulti_SwallowsFailures(t *testing.T) {
	a := &failingNotifier{}
	b := &failingNotifier{}
	m := NewMulti(nil, a, b)

	if err := m.Send(context.Background(), "hello"); err != nil {
		t.Errorf("Multi.Send must always return nil, got %v", err)
	}
	if a.sent != 1 || b.sent != 1 {
		t.Errorf("every target must be attempted: a=%d b=%d", a.sent, b.sent)
	}
}

func TestFromConfig(t *testing.T) {
	m, err := FromConfig(config.NotifyConfig{}, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(m.targets) != 0 {
		t.Errorf("empty config must yield zero targets, got %d", len(m.targets))
	}

	m, err = FromConfig(config.NotifyConfig{
		SlackToken: "xoxb-test", SlackChannel: "C123",
		DiscordToken: "token", DiscordChannel: "987",
	}, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(m.targets) != 2 {
		t.Errorf("expected two targets, got %d", len(m.targets))
	}
}

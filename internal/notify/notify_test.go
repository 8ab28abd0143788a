package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/snipnote/scribed/internal/models"
)

func TestHeadline(t *testing.T) {
	done := Event{JobID: "j1", Status: models.StatusCompleted, Duration: 90}
	if got := headline(done); !strings.Contains(got, "completed") {
		t.Errorf("headline = %q, want completion wording", got)
	}

	failed := Event{JobID: "j2", Status: models.StatusFailed, Error: "401 unauthorized"}
	got := headline(failed)
	if !strings.Contains(got, "failed") || !strings.Contains(got, "401 unauthorized") {
		t.Errorf("headline = %q, want failure wording with error", got)
	}
}

func TestEventForJob(t *testing.T) {
	job := &models.Job{ID: "j1", Status: models.StatusFailed, Mode: models.ModeChunked, ErrorMessage: "boom"}
	ev := EventForJob(job)
	if ev.JobID != "j1" || ev.Status != models.StatusFailed || ev.Mode != models.ModeChunked || ev.Error != "boom" {
		t.Errorf("EventForJob = %+v", ev)
	}
}

func TestSlack_PostsAttachment(t *testing.T) {
	var gotURL string
	var gotMsg *slackapi.WebhookMessage
	s := &Slack{
		webhookURL: "https://hooks.slack.com/services/T/B/X",
		post: func(_ context.Context, url string, msg *slackapi.WebhookMessage) error {
			gotURL = url
			gotMsg = msg
			return nil
		},
	}

	err := s.Notify(context.Background(), Event{JobID: "j1", Status: models.StatusCompleted, Mode: models.ModeSingle})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotURL != s.webhookURL {
		t.Errorf("url = %q", gotURL)
	}
	if len(gotMsg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(gotMsg.Attachments))
	}
	if gotMsg.Attachments[0].Color != "#36a64f" {
		t.Errorf("color = %q, want success green", gotMsg.Attachments[0].Color)
	}
}

func TestSlack_FailureColor(t *testing.T) {
	var gotMsg *slackapi.WebhookMessage
	s := &Slack{post: func(_ context.Context, _ string, msg *slackapi.WebhookMessage) error {
		gotMsg = msg
		return nil
	}}

	s.Notify(context.Background(), Event{JobID: "j1", Status: models.StatusFailed, Error: "boom"})
	if gotMsg.Attachments[0].Color != "#cc0000" {
		t.Errorf("color = %q, want failure red", gotMsg.Attachments[0].Color)
	}
}

type fakeDiscordSender struct {
	channelID string
	embed     *discordgo.MessageEmbed
	err       error
}

func (f *fakeDiscordSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channelID = channelID
	f.embed = embed
	return nil, f.err
}

func TestDiscord_SendsEmbed(t *testing.T) {
	sender := &fakeDiscordSender{}
	d := &Discord{session: sender, channelID: "chan-1"}

	err := d.Notify(context.Background(), Event{JobID: "j1", Status: models.StatusCompleted})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sender.channelID != "chan-1" {
		t.Errorf("channelID = %q", sender.channelID)
	}
	if sender.embed == nil || !strings.Contains(sender.embed.Title, "completed") {
		t.Errorf("embed = %+v", sender.embed)
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, Event) error {
	c.calls++
	return c.err
}

func TestMulti_DeliversToAllAndSwallowsErrors(t *testing.T) {
	bad := &countingNotifier{err: errors.New("down")}
	good := &countingNotifier{}
	m := NewMulti(nil, bad, good)

	if err := m.Notify(context.Background(), Event{JobID: "j1"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if bad.calls != 1 || good.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", bad.calls, good.calls)
	}
}

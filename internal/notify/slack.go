package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/snipnote/scribed/internal/models"
)

// Slack delivers events to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error
}

// NewSlack builds a Slack webhook notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		post:       slackapi.PostWebhookContext,
	}
}

// Notify posts the event as an attachment with a status color.
func (s *Slack) Notify(ctx context.Context, ev Event) error {
	color := "#36a64f"
	if ev.Status != models.StatusCompleted {
		color = "#cc0000"
	}

	msg := &slackapi.WebhookMessage{
		Attachments: []slackapi.Attachment{
			{
				Color: color,
				Title: headline(ev),
				Fields: []slackapi.AttachmentField{
					{Title: "Job", Value: ev.JobID, Short: true},
					{Title: "Mode", Value: ev.Mode, Short: true},
					{Title: "Status", Value: ev.Status, Short: true},
				},
			},
		},
	}
	if err := s.post(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("notify: slack webhook: %w", err)
	}
	return nil
}

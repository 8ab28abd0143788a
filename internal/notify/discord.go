package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/snipnote/scribed/internal/models"
)

// discordSender abstracts the discordgo session methods we use, enabling
// test mocks.
type discordSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord delivers events to a Discord channel via a bot session.
type Discord struct {
	session   discordSender
	channelID string
}

// NewDiscord builds a Discord notifier from a bot token and target channel.
// The session is REST-only; no gateway connection is opened.
func NewDiscord(botToken, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

// Notify posts the event as an embed with a status color.
func (d *Discord) Notify(ctx context.Context, ev Event) error {
	color := 0x36a64f
	if ev.Status != models.StatusCompleted {
		color = 0xcc0000
	}

	embed := &discordgo.MessageEmbed{
		Title: headline(ev),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Job", Value: ev.JobID, Inline: true},
			{Name: "Mode", Value: ev.Mode, Inline: true},
			{Name: "Status", Value: ev.Status, Inline: true},
		},
	}
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

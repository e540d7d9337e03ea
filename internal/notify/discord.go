package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/exiletools/runtracker/internal/tracker"
)

// Discord posts run summaries to a single channel.
type Discord struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscord(token, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

func (d *Discord) RunProcessed(ctx context.Context, n tracker.Notification) error {
	_, err := d.session.ChannelMessageSend(d.channelID, FormatRun(n), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

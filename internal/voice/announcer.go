package voice

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ChannelAnnouncer posts transcripts to one text channel.
type ChannelAnnouncer struct {
	Session   *discordgo.Session
	ChannelID string
}

func (a *ChannelAnnouncer) Announce(ctx context.Context, text string) error {
	if a.Session == nil || a.ChannelID == "" {
		return fmt.Errorf("announcer not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.Session.ChannelMessageSend(a.ChannelID, text); err != nil {
		return fmt.Errorf("send to channel %s: %w", a.ChannelID, err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-scribe/internal/config"
	"github.com/discord-voice-scribe/internal/logging"
	"github.com/discord-voice-scribe/internal/session"
	"github.com/discord-voice-scribe/internal/voice"
)

// Bot ties the gateway session, the voice receiver, and the coordinator
// together and owns the at-most-one voice connection.
type Bot struct {
	cfg       *config.Config
	dg        *discordgo.Session
	coord     *session.Coordinator
	receiver  *voice.Receiver
	announcer *voice.ChannelAnnouncer

	mu         sync.Mutex
	vc         *discordgo.VoiceConnection
	recvCancel context.CancelFunc
	recvWG     sync.WaitGroup
}

// HandleMessage processes chat commands. Registered as a MessageCreate
// handler on the gateway session.
func (b *Bot) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, b.cfg.CommandPrefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "ping":
		b.reply(m.ChannelID, "Pong!")
	case "join":
		b.cmdJoin(s, m, fields[1:])
	case "leave":
		b.cmdLeave(m)
	}
}

// cmdJoin joins the channel given as argument, or the one the author is in.
func (b *Bot) cmdJoin(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	var channelID string
	if len(args) > 0 {
		channelID = args[0]
	} else {
		id, err := b.authorVoiceChannel(s, m.GuildID, m.Author.ID)
		if err != nil {
			logging.Warnw("bot: join command failed", "guild", m.GuildID, "user", m.Author.ID, "err", err)
			b.reply(m.ChannelID, "Not in a voice channel")
			return
		}
		channelID = id
	}
	// Announce into the channel the command came from unless one is pinned
	// by configuration.
	if b.cfg.TextChannelID == "" {
		b.announcer.ChannelID = m.ChannelID
	}
	if err := b.JoinVoice(m.GuildID, channelID); err != nil {
		logging.Errorw("bot: voice join failed", "guild", m.GuildID, "channel", channelID, "err", err)
		b.reply(m.ChannelID, "Failed to join voice channel")
		return
	}
	b.reply(m.ChannelID, "Joined and listening")
}

func (b *Bot) cmdLeave(m *discordgo.MessageCreate) {
	if !b.LeaveVoice() {
		b.reply(m.ChannelID, "Not in a voice channel")
		return
	}
	b.reply(m.ChannelID, "Left voice channel")
}

// authorVoiceChannel finds the voice channel the message author is in.
func (b *Bot) authorVoiceChannel(s *discordgo.Session, guildID, userID string) (string, error) {
	if s.State == nil {
		return "", fmt.Errorf("session state unavailable")
	}
	g, err := s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user %s has no voice state in guild %s", userID, guildID)
}

// JoinVoice connects to the given voice channel, replacing any existing
// connection, and starts the receiver on its Opus stream.
func (b *Bot) JoinVoice(guildID, channelID string) error {
	b.LeaveVoice()

	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return fmt.Errorf("voice join guild=%s channel=%s: %w", guildID, channelID, err)
	}
	vc.AddHandler(b.receiver.HandleSpeakingUpdate)

	ctx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	b.vc = vc
	b.recvCancel = cancel
	b.recvWG.Add(1)
	b.mu.Unlock()

	b.receiver.SetActiveGuild(guildID)
	b.receiver.Run(ctx, &b.recvWG, vc)
	logging.Infow("bot: joined voice channel", "guild", guildID, "channel", channelID)
	return nil
}

// LeaveVoice stops the receiver and disconnects. Returns false when no voice
// connection was active.
func (b *Bot) LeaveVoice() bool {
	b.mu.Lock()
	vc := b.vc
	cancel := b.recvCancel
	b.vc = nil
	b.recvCancel = nil
	b.mu.Unlock()

	if vc == nil {
		return false
	}
	if cancel != nil {
		cancel()
	}
	b.recvWG.Wait()
	b.receiver.SetActiveGuild("")
	b.coord.Reset()
	if err := vc.Disconnect(); err != nil {
		logging.Warnw("bot: voice disconnect error", "err", err)
	}
	logging.Infow("bot: left voice channel")
	return true
}

func (b *Bot) reply(channelID, text string) {
	if _, err := b.dg.ChannelMessageSend(channelID, text); err != nil {
		logging.Warnw("bot: reply failed", "channel", channelID, "err", err)
	}
}

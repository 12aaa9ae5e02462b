// Package voice adapts the Discord voice transport to session events:
// decoding inbound Opus, translating gateway callbacks, and posting
// announcements back to the text channel.
package voice

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-scribe/internal/logging"
	"github.com/discord-voice-scribe/internal/session"
)

// Dispatcher consumes translated voice events. Satisfied by
// *session.Coordinator.
type Dispatcher interface {
	Dispatch(session.Event)
}

// Receiver reads a voice connection's Opus stream and gateway callbacks and
// feeds them to a Dispatcher as session events.
type Receiver struct {
	dispatcher Dispatcher

	mu          sync.Mutex
	decoders    map[uint32]*Decoder
	activeGuild string
}

func NewReceiver(d Dispatcher) *Receiver {
	return &Receiver{
		dispatcher: d,
		decoders:   make(map[uint32]*Decoder),
	}
}

// Run consumes vc.OpusRecv until the channel closes or ctx is cancelled.
// Caller must wg.Add(1) first.
func (r *Receiver) Run(ctx context.Context, wg *sync.WaitGroup, vc *discordgo.VoiceConnection) {
	go func() {
		defer wg.Done()
		logging.Infow("voice: receiver started")
		for {
			select {
			case <-ctx.Done():
				logging.Infow("voice: receiver stopping")
				return
			case pkt, ok := <-vc.OpusRecv:
				if !ok {
					logging.Infow("voice: opus channel closed")
					return
				}
				r.handlePacket(pkt)
			}
		}
	}()
}

func (r *Receiver) handlePacket(pkt *discordgo.Packet) {
	if pkt == nil {
		return
	}
	pcm, err := r.decoderFor(pkt.SSRC).Decode(pkt.Opus)
	if err != nil {
		logging.Debugw("voice: opus decode failed", "ssrc", pkt.SSRC, "err", err)
		r.dispatcher.Dispatch(session.AudioPacket{SSRC: pkt.SSRC, Decoded: false})
		return
	}
	r.dispatcher.Dispatch(session.AudioPacket{SSRC: pkt.SSRC, PCM: pcm, Decoded: true})
}

// HandleSpeakingUpdate translates one gateway speaking update into the two
// session events it implies: the SSRC binding and the start/stop edge.
func (r *Receiver) HandleSpeakingUpdate(_ *discordgo.VoiceConnection, vsu *discordgo.VoiceSpeakingUpdate) {
	if vsu == nil {
		return
	}
	ssrc := uint32(vsu.SSRC)
	r.dispatcher.Dispatch(session.SpeakingState{SSRC: ssrc, UserID: vsu.UserID, Speaking: vsu.Speaking})
	r.dispatcher.Dispatch(session.SpeakingUpdate{SSRC: ssrc, Speaking: vsu.Speaking})
}

// SetActiveGuild scopes voice-state handling to one guild. Empty means no
// voice connection is active and disconnects are ignored.
func (r *Receiver) SetActiveGuild(guildID string) {
	r.mu.Lock()
	r.activeGuild = guildID
	r.mu.Unlock()
}

// HandleVoiceState reports users leaving voice. Registered on the main
// gateway session, which delivers updates for every guild the bot is in, so
// anything outside the active guild is dropped.
func (r *Receiver) HandleVoiceState(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs == nil || vs.VoiceState == nil || vs.ChannelID != "" {
		return
	}
	r.mu.Lock()
	active := r.activeGuild
	r.mu.Unlock()
	if active == "" || vs.GuildID != active {
		return
	}
	r.dispatcher.Dispatch(session.Disconnect{UserID: vs.UserID})
}

func (r *Receiver) decoderFor(ssrc uint32) *Decoder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.decoders[ssrc]; ok {
		return d
	}
	d, err := NewDecoder()
	if err != nil {
		// Should not happen with fixed valid params; fall back to a
		// decoder that rejects everything so packets count as
		// undecodable instead of panicking.
		logging.Errorw("voice: decoder create failed", "ssrc", ssrc, "err", err)
		d = &Decoder{}
	}
	r.decoders[ssrc] = d
	return d
}

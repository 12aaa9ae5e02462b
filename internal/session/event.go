package session

// Event is the closed set of inbound voice-transport events the coordinator
// handles. Anything else hits the defensive default arm in Dispatch.
type Event interface {
	isEvent()
}

// SpeakingState binds an SSRC to a user. Delivered by the voice gateway
// whenever a speaker's state changes; may repeat for the same SSRC.
type SpeakingState struct {
	SSRC     uint32
	UserID   string
	Speaking bool
}

// SpeakingUpdate marks the start or end of an utterance for an SSRC.
type SpeakingUpdate struct {
	SSRC     uint32
	Speaking bool
}

// AudioPacket carries decoded PCM for an SSRC. Decoded is false when the
// packet arrived but could not be decoded (decoder missing or failed), which
// is distinct from an empty sample list.
type AudioPacket struct {
	SSRC    uint32
	PCM     []int16
	Decoded bool
}

// Disconnect reports a user leaving the voice channel.
type Disconnect struct {
	UserID string
}

func (SpeakingState) isEvent()  {}
func (SpeakingUpdate) isEvent() {}
func (AudioPacket) isEvent()    {}
func (Disconnect) isEvent()     {}

package voice

import (
	"fmt"

	"github.com/hraban/opus"
)

const (
	sampleRate = 48000
	channels   = 1
	// one 20ms frame at 48kHz mono
	frameSize = sampleRate / 50
)

// Decoder wraps a mono 48kHz Opus decoder. Opus decoders carry state between
// frames, so each SSRC gets its own.
type Decoder struct {
	dec *opus.Decoder
}

func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode returns the PCM samples for one Opus packet.
func (d *Decoder) Decode(data []byte) ([]int16, error) {
	if d.dec == nil {
		return nil, fmt.Errorf("decoder unavailable")
	}
	pcm := make([]int16, frameSize)
	n, err := d.dec.Decode(data, pcm)
	if err != nil {
		return nil, err
	}
	samples := make([]int16, n)
	copy(samples, pcm[:n])
	return samples, nil
}

// Package session holds the per-voice-connection state machine: the sample
// store, the SSRC identity table, and the coordinator that turns transport
// events into finalized utterances.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/discord-voice-scribe/internal/logging"
	"github.com/discord-voice-scribe/internal/metrics"
)

const defaultTranscribeTimeout = 30 * time.Second

// Coordinator routes voice events to the store, identities, and finalizer.
// Dispatch is safe for concurrent use; finalization runs on its own
// goroutine per utterance so one slow transcription never stalls another
// speaker.
type Coordinator struct {
	store      *Store
	identities *Identities
	finalizer  *Finalizer
	metrics    *metrics.Metrics
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inflightMu sync.Mutex
	inflight   map[uint32]chan struct{}
}

// NewCoordinator wires a coordinator around the given finalizer. A zero
// transcribeTimeout picks a sane default.
func NewCoordinator(f *Finalizer, m *metrics.Metrics, transcribeTimeout time.Duration) *Coordinator {
	if transcribeTimeout <= 0 {
		transcribeTimeout = defaultTranscribeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:      NewStore(),
		identities: NewIdentities(),
		finalizer:  f,
		metrics:    m,
		timeout:    transcribeTimeout,
		ctx:        ctx,
		cancel:     cancel,
		inflight:   make(map[uint32]chan struct{}),
	}
}

// Identities exposes the SSRC binding table for the finalizer and callers.
func (c *Coordinator) Identities() *Identities { return c.identities }

// Dispatch routes one event. Unknown event types are logged and dropped.
func (c *Coordinator) Dispatch(ev Event) {
	switch e := ev.(type) {
	case SpeakingState:
		c.handleSpeakingState(e)
	case SpeakingUpdate:
		c.handleSpeakingUpdate(e)
	case AudioPacket:
		c.handleAudioPacket(e)
	case Disconnect:
		c.handleDisconnect(e)
	default:
		logging.Warnw("session: dropping unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

// Reset discards all buffers and identity bindings. Called when the voice
// connection ends; in-flight finalizations already hold their drained
// samples and are unaffected.
func (c *Coordinator) Reset() {
	c.store.Reset()
	c.identities.Reset()
	logging.Debugw("session: state reset")
}

// Close stops accepting finalization work and waits for in-flight
// utterances to finish.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) handleSpeakingState(e SpeakingState) {
	c.identities.Bind(e.SSRC, e.UserID)
	logging.Debugw("session: bound stream",
		"ssrc", e.SSRC, "user_id", e.UserID, "speaking", e.Speaking)
}

func (c *Coordinator) handleSpeakingUpdate(e SpeakingUpdate) {
	if e.Speaking {
		logging.Debugw("session: speaking start", "ssrc", e.SSRC)
		return
	}
	c.finalizeStream(e.SSRC)
}

func (c *Coordinator) handleAudioPacket(e AudioPacket) {
	c.metrics.RecordPacket(e.Decoded)
	if !e.Decoded {
		logging.Debugw("session: skipping undecodable packet", "ssrc", e.SSRC)
		return
	}
	kept := c.store.Append(e.SSRC, e.PCM)
	c.metrics.RecordAppend(kept)
}

// handleDisconnect is observational: buffers for the user's streams stay put
// so a trailing speaking-stop can still finalize them.
func (c *Coordinator) handleDisconnect(e Disconnect) {
	streams := c.identities.StreamsFor(e.UserID)
	logging.Infow("session: user left voice",
		"user_id", e.UserID, "streams", streams)
}

// finalizeStream drains synchronously so the buffer can never be finalized
// twice, then hands the samples to a goroutine for the slow part.
// Finalizations for the same SSRC are chained: each goroutine waits for the
// previous one to finish before starting, so the per-SSRC staging file is
// never shared between two in-flight utterances. Distinct SSRCs stay
// independent.
func (c *Coordinator) finalizeStream(ssrc uint32) {
	samples, present := c.store.DrainRemove(ssrc)
	if !present || len(samples) == 0 {
		c.metrics.RecordEmptyUtterance()
		logging.Debugw("session: nothing to finalize", "ssrc", ssrc, "present", present)
		return
	}
	c.metrics.RecordFinalized()

	c.inflightMu.Lock()
	prev := c.inflight[ssrc]
	done := make(chan struct{})
	c.inflight[ssrc] = done
	c.inflightMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			close(done)
			c.inflightMu.Lock()
			if c.inflight[ssrc] == done {
				delete(c.inflight, ssrc)
			}
			c.inflightMu.Unlock()
		}()
		if prev != nil {
			// The predecessor always closes its channel, even on
			// timeout or shutdown, so this wait is bounded.
			<-prev
		}
		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()
		if err := c.finalizer.Finalize(ctx, ssrc, samples); err != nil {
			sentry.CaptureException(err)
			logging.Errorw("session: finalization failed", "ssrc", ssrc, "err", err)
		}
	}()
}

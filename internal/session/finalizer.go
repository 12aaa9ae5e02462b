package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/discord-voice-scribe/internal/archive"
	"github.com/discord-voice-scribe/internal/audio"
	"github.com/discord-voice-scribe/internal/logging"
	"github.com/discord-voice-scribe/internal/metrics"
	"github.com/discord-voice-scribe/internal/transcribe"
)

// Announcer posts a finished transcript to the text channel.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// NameResolver turns a user ID into a display name. Implementations return
// ("", false) when the name is unavailable; the finalizer falls back to the
// raw ID.
type NameResolver interface {
	UserName(userID string) (string, bool)
}

// Finalizer turns a drained utterance into a WAV file, a transcript, and an
// announcement. It owns no buffers; the coordinator hands it samples that are
// already removed from the store.
type Finalizer struct {
	Transcriber transcribe.Transcriber
	Announcer   Announcer
	Identities  *Identities
	Resolver    NameResolver
	StagingDir  string
	Archiver    *archive.Archiver
	Metrics     *metrics.Metrics
}

// Finalize encodes, stages, transcribes, and announces one utterance. The
// staging WAV is removed before returning regardless of outcome. A
// transcription that yields no text is not an error; transport failures are.
func (f *Finalizer) Finalize(ctx context.Context, ssrc uint32, samples []int16) error {
	cid := uuid.NewString()
	start := time.Now()
	logging.Debugw("finalize: begin",
		"correlation_id", cid, "ssrc", ssrc, "samples", len(samples))

	wav := audio.EncodeWAV(samples, audio.TranscribeSampleRate)

	stagingPath := filepath.Join(f.StagingDir, fmt.Sprintf("%d-output.wav", ssrc))
	if err := archive.WriteFileAtomic(stagingPath, wav, 0o644); err != nil {
		return fmt.Errorf("stage wav for ssrc=%d: %w", ssrc, err)
	}
	defer func() {
		if err := os.Remove(stagingPath); err != nil && !os.IsNotExist(err) {
			logging.Warnw("finalize: failed to remove staged wav",
				"correlation_id", cid, "path", stagingPath, "err", err)
		}
	}()

	data, err := os.ReadFile(stagingPath)
	if err != nil {
		return fmt.Errorf("read staged wav %s: %w", stagingPath, err)
	}

	userID, bound := f.Identities.Lookup(ssrc)
	if err := f.Archiver.SaveUtterance(ssrc, userID, cid, data); err != nil {
		logging.Warnw("finalize: archive save failed", "correlation_id", cid, "err", err)
	}

	text, err := f.Transcriber.Transcribe(ctx, data)
	f.Metrics.RecordTranscription(err == nil, errors.Is(err, transcribe.ErrNoTranscript), time.Since(start))
	if err != nil {
		if errors.Is(err, transcribe.ErrNoTranscript) {
			logging.Infow("finalize: no transcript",
				"correlation_id", cid, "ssrc", ssrc, "samples", len(samples))
			return nil
		}
		return fmt.Errorf("transcribe ssrc=%d: %w", ssrc, err)
	}

	if err := f.Archiver.MergeTranscript(cid, text); err != nil {
		logging.Warnw("finalize: archive merge failed", "correlation_id", cid, "err", err)
	}

	speaker := f.speakerLabel(ssrc, userID, bound)
	msg := fmt.Sprintf("%s disse: %s", speaker, text)
	if err := f.Announcer.Announce(ctx, msg); err != nil {
		// The transcript is already archived; don't fail the utterance
		// over a chat send.
		f.Metrics.RecordAnnounceFailure()
		logging.Errorw("finalize: announce failed",
			"correlation_id", cid, "ssrc", ssrc, "err", err)
		return nil
	}

	logging.Infow("finalize: announced",
		"correlation_id", cid, "ssrc", ssrc, "speaker", speaker,
		"chars", len(text), "elapsed", time.Since(start))
	return nil
}

func (f *Finalizer) speakerLabel(ssrc uint32, userID string, bound bool) string {
	if !bound {
		return strconv.FormatUint(uint64(ssrc), 10)
	}
	if f.Resolver != nil {
		if name, ok := f.Resolver.UserName(userID); ok && name != "" {
			return name
		}
	}
	return userID
}

// Package transcribe defines the speech-to-text capability used by the
// session finalizer and provides HTTP-backed implementations.
package transcribe

import (
	"context"
	"errors"
)

// ErrNoTranscript is returned when the backend processed the audio but
// produced no transcript. Callers distinguish it from transport failures
// with errors.Is.
var ErrNoTranscript = errors.New("no transcript produced")

// Transcriber turns an encoded WAV utterance into text. Implementations must
// be safe for concurrent use; they carry no per-call state.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

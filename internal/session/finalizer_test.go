package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/discord-voice-scribe/internal/archive"
	"github.com/discord-voice-scribe/internal/transcribe"
)

type fakeTranscriber struct {
	mu      sync.Mutex
	entered int
	calls   int
	got     [][]byte
	text    string
	err     error
	gate    chan struct{} // when non-nil, Transcribe blocks until closed
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	f.mu.Lock()
	f.entered++
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = append(f.got, wav)
	return f.text, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// enteredCount reports calls that reached Transcribe, including ones still
// blocked on the gate.
func (f *fakeTranscriber) enteredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entered
}

type fakeAnnouncer struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeAnnouncer) Announce(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeAnnouncer) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

type staticResolver map[string]string

func (r staticResolver) UserName(userID string) (string, bool) {
	name, ok := r[userID]
	return name, ok
}

func newTestFinalizer(t *testing.T, tr *fakeTranscriber, an *fakeAnnouncer) (*Finalizer, *Identities) {
	t.Helper()
	ids := NewIdentities()
	return &Finalizer{
		Transcriber: tr,
		Announcer:   an,
		Identities:  ids,
		StagingDir:  t.TempDir(),
	}, ids
}

func TestFinalizeAnnouncesTranscript(t *testing.T) {
	tr := &fakeTranscriber{text: "ola mundo"}
	an := &fakeAnnouncer{}
	f, ids := newTestFinalizer(t, tr, an)
	ids.Bind(42, "user-42")
	f.Resolver = staticResolver{"user-42": "Alice"}

	if err := f.Finalize(context.Background(), 42, []int16{1, 2, 3}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	msgs := an.sent()
	if len(msgs) != 1 || msgs[0] != "Alice disse: ola mundo" {
		t.Fatalf("unexpected announcement: %v", msgs)
	}
	if tr.callCount() != 1 {
		t.Fatalf("expected one transcription call, got %d", tr.callCount())
	}
}

func TestFinalizeFallsBackToUserID(t *testing.T) {
	tr := &fakeTranscriber{text: "oi"}
	an := &fakeAnnouncer{}
	f, ids := newTestFinalizer(t, tr, an)
	ids.Bind(7, "user-7")

	if err := f.Finalize(context.Background(), 7, []int16{1}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if msgs := an.sent(); len(msgs) != 1 || msgs[0] != "user-7 disse: oi" {
		t.Fatalf("unexpected announcement: %v", msgs)
	}
}

func TestFinalizeUnboundUsesSSRC(t *testing.T) {
	tr := &fakeTranscriber{text: "oi"}
	an := &fakeAnnouncer{}
	f, _ := newTestFinalizer(t, tr, an)

	if err := f.Finalize(context.Background(), 12345, []int16{1}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if msgs := an.sent(); len(msgs) != 1 || msgs[0] != "12345 disse: oi" {
		t.Fatalf("unexpected announcement: %v", msgs)
	}
}

func TestFinalizeNoTranscriptIsSilent(t *testing.T) {
	tr := &fakeTranscriber{err: transcribe.ErrNoTranscript}
	an := &fakeAnnouncer{}
	f, _ := newTestFinalizer(t, tr, an)

	if err := f.Finalize(context.Background(), 1, []int16{1, 2}); err != nil {
		t.Fatalf("no-transcript should not be an error: %v", err)
	}
	if msgs := an.sent(); len(msgs) != 0 {
		t.Fatalf("nothing should be announced, got %v", msgs)
	}
}

func TestFinalizeTransportErrorPropagates(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("backend down")}
	an := &fakeAnnouncer{}
	f, _ := newTestFinalizer(t, tr, an)

	if err := f.Finalize(context.Background(), 1, []int16{1}); err == nil {
		t.Fatalf("transport error should propagate")
	}
	if msgs := an.sent(); len(msgs) != 0 {
		t.Fatalf("nothing should be announced, got %v", msgs)
	}
}

func TestFinalizeAnnounceFailureNotFatal(t *testing.T) {
	tr := &fakeTranscriber{text: "oi"}
	an := &fakeAnnouncer{err: errors.New("channel gone")}
	f, _ := newTestFinalizer(t, tr, an)

	if err := f.Finalize(context.Background(), 1, []int16{1}); err != nil {
		t.Fatalf("announce failure should not fail finalization: %v", err)
	}
}

func TestFinalizeRemovesStagedFile(t *testing.T) {
	tr := &fakeTranscriber{text: "oi"}
	an := &fakeAnnouncer{}
	f, _ := newTestFinalizer(t, tr, an)

	if err := f.Finalize(context.Background(), 55, []int16{1}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	staged := filepath.Join(f.StagingDir, "55-output.wav")
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Fatalf("staged wav should be removed, stat err=%v", err)
	}
}

func TestFinalizeArchivesWavAndTranscript(t *testing.T) {
	tr := &fakeTranscriber{text: "oi"}
	an := &fakeAnnouncer{}
	f, ids := newTestFinalizer(t, tr, an)
	ids.Bind(3, "user-3")
	dir := t.TempDir()
	f.Archiver = archive.New(dir)

	if err := f.Finalize(context.Background(), 3, []int16{1, 2}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected wav+sidecar in archive, got %v", names)
	}
	var sidecar string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			sidecar = filepath.Join(dir, e.Name())
		}
	}
	b, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	for _, want := range []string{`"transcript": "oi"`, `"user_id": "user-3"`} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("sidecar missing %s:\n%s", want, b)
		}
	}
}

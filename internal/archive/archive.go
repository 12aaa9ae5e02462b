// Package archive keeps optional on-disk copies of finalized utterances:
// a WAV per utterance plus a JSON sidecar with the metadata and, once
// transcription completes, the transcript.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/discord-voice-scribe/internal/logging"
)

// Archiver writes utterance WAVs and sidecars under Dir. A nil Archiver is a
// no-op, so callers don't need to branch on whether archiving is enabled.
type Archiver struct {
	Dir string
}

// New returns an Archiver for dir, or nil when dir is empty.
func New(dir string) *Archiver {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return &Archiver{Dir: dir}
}

// SaveUtterance writes the WAV and its sidecar. Best-effort: failures are
// logged by the caller and never block finalization.
func (a *Archiver) SaveUtterance(ssrc uint32, userID, correlationID string, wav []byte) error {
	if a == nil {
		return nil
	}
	ts := time.Now().UTC().Format("20060102T150405.000Z")
	base := filepath.Join(a.Dir, fmt.Sprintf("%s_ssrc%d", ts, ssrc))
	wavPath := base + ".wav"
	if err := WriteFileAtomic(wavPath, wav, 0o644); err != nil {
		return fmt.Errorf("write archived wav: %w", err)
	}

	sidecar := map[string]interface{}{
		"ssrc":           ssrc,
		"user_id":        userID,
		"correlation_id": correlationID,
		"wav_path":       wavPath,
		"created_utc":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	sb, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := WriteFileAtomic(base+".json", sb, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	logging.Debugw("archive: saved utterance", "path", wavPath, "correlation_id", correlationID)
	return nil
}

// FindByCID returns the sidecar path whose correlation_id matches cid, or "".
func (a *Archiver) FindByCID(cid string) string {
	if a == nil || cid == "" {
		return ""
	}
	files, err := os.ReadDir(a.Dir)
	if err != nil {
		logging.Warnw("archive: failed to list dir", "dir", a.Dir, "err", err)
		return ""
	}
	for _, fi := range files {
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(a.Dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var sc map[string]interface{}
		if err := json.Unmarshal(b, &sc); err != nil {
			continue
		}
		if v, ok := sc["correlation_id"].(string); ok && v == cid {
			return path
		}
	}
	return ""
}

// MergeTranscript records the transcript into the sidecar for cid.
func (a *Archiver) MergeTranscript(cid, transcript string) error {
	if a == nil {
		return nil
	}
	path := a.FindByCID(cid)
	if path == "" {
		return fmt.Errorf("sidecar not found for cid=%s", cid)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sidecar %s: %w", path, err)
	}
	var sc map[string]interface{}
	if err := json.Unmarshal(b, &sc); err != nil {
		return fmt.Errorf("invalid sidecar JSON %s: %w", path, err)
	}
	sc["transcript"] = transcript
	sc["transcribed_utc"] = time.Now().UTC().Format(time.RFC3339Nano)
	nb, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	return WriteFileAtomic(path, nb, 0o644)
}

// StartCleaner runs a background sweep of Dir, removing sidecar/WAV pairs
// older than retention and enforcing maxFiles. Caller must wg.Add(1) first.
func (a *Archiver) StartCleaner(ctx context.Context, wg *sync.WaitGroup, retention, interval time.Duration, maxFiles int) {
	go func() {
		defer wg.Done()
		if a == nil {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.sweep(retention, maxFiles)
			}
		}
	}()
}

type archivedPair struct {
	jsonPath string
	wavPath  string
	mod      time.Time
}

// sweep removes expired pairs and trims the archive to maxFiles, oldest first.
func (a *Archiver) sweep(retention time.Duration, maxFiles int) {
	files, err := os.ReadDir(a.Dir)
	if err != nil {
		logging.Debugw("archive: sweep readDir failed", "err", err)
		return
	}
	var pairs []archivedPair
	for _, fi := range files {
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		jsonPath := filepath.Join(a.Dir, name)
		st, err := os.Stat(jsonPath)
		if err != nil {
			continue
		}
		wavPath := strings.TrimSuffix(jsonPath, ".json") + ".wav"
		if b, err := os.ReadFile(jsonPath); err == nil {
			var sc map[string]interface{}
			if err := json.Unmarshal(b, &sc); err == nil {
				if v, ok := sc["wav_path"].(string); ok && v != "" {
					wavPath = v
				}
			}
		}
		pairs = append(pairs, archivedPair{jsonPath: jsonPath, wavPath: wavPath, mod: st.ModTime()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].mod.Before(pairs[j].mod) })

	cutoff := time.Now().Add(-retention)
	kept := pairs[:0]
	for _, p := range pairs {
		if p.mod.Before(cutoff) {
			removePair(p)
			continue
		}
		kept = append(kept, p)
	}
	if maxFiles > 0 && len(kept) > maxFiles {
		for _, p := range kept[:len(kept)-maxFiles] {
			removePair(p)
		}
	}
}

func removePair(p archivedPair) {
	_ = os.Remove(p.jsonPath)
	if p.wavPath != "" {
		_ = os.Remove(p.wavPath)
	}
}

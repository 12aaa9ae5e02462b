package session

import "sync"

// Store accumulates decoded PCM per SSRC. The outer map is guarded by its
// own mutex and each buffer carries one too, so appends for distinct SSRCs
// only contend on the map lookup, never on each other's samples.
//
// The voice gateway delivers events for one SSRC in order, so an append and
// a drain for the same SSRC are never concurrent; the per-buffer mutex only
// serializes appends against the snapshot taken by DrainRemove.
type Store struct {
	mu   sync.RWMutex
	bufs map[uint32]*sampleBuffer
}

type sampleBuffer struct {
	mu      sync.Mutex
	samples []int16
}

func NewStore() *Store {
	return &Store{bufs: make(map[uint32]*sampleBuffer)}
}

// Append adds the non-zero samples to the buffer for ssrc, creating it when
// absent. Zero-valued samples are decoder silence padding and are dropped.
// Returns the number of samples kept.
func (s *Store) Append(ssrc uint32, samples []int16) int {
	b := s.buffer(ssrc)
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := 0
	for _, v := range samples {
		if v != 0 {
			b.samples = append(b.samples, v)
			kept++
		}
	}
	return kept
}

// DrainRemove atomically removes and returns the buffer for ssrc. present is
// false when no buffer was ever created; a buffer that accumulated nothing
// comes back as (empty, true) so callers can tell silence from absence.
func (s *Store) DrainRemove(ssrc uint32) (samples []int16, present bool) {
	s.mu.Lock()
	b, ok := s.bufs[ssrc]
	if ok {
		delete(s.bufs, ssrc)
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	b.mu.Lock()
	samples = b.samples
	b.samples = nil
	b.mu.Unlock()
	return samples, true
}

// Reset discards all buffers. Samples already drained are unaffected.
func (s *Store) Reset() {
	s.mu.Lock()
	s.bufs = make(map[uint32]*sampleBuffer)
	s.mu.Unlock()
}

// Len reports how many SSRCs currently have a live buffer.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bufs)
}

func (s *Store) buffer(ssrc uint32) *sampleBuffer {
	s.mu.RLock()
	b, ok := s.bufs[ssrc]
	s.mu.RUnlock()
	if ok {
		return b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bufs[ssrc]; ok {
		return b
	}
	b = &sampleBuffer{}
	s.bufs[ssrc] = b
	return b
}

package session

import "sync"

// Identities maps SSRCs to user IDs. The voice transport allocates SSRCs
// randomly per speaker, so the only source of this mapping is speaking-state
// updates. Rebinding is last-write-wins; bindings survive utterance
// finalization and are only discarded with the session itself.
type Identities struct {
	mu       sync.RWMutex
	byStream map[uint32]string
}

func NewIdentities() *Identities {
	return &Identities{byStream: make(map[uint32]string)}
}

// Bind records the user for ssrc, overwriting any previous binding.
func (i *Identities) Bind(ssrc uint32, userID string) {
	i.mu.Lock()
	i.byStream[ssrc] = userID
	i.mu.Unlock()
}

// Lookup returns the bound user for ssrc.
func (i *Identities) Lookup(ssrc uint32) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	u, ok := i.byStream[ssrc]
	return u, ok
}

// Reset discards all bindings.
func (i *Identities) Reset() {
	i.mu.Lock()
	i.byStream = make(map[uint32]string)
	i.mu.Unlock()
}

// StreamsFor returns all SSRCs currently bound to userID.
func (i *Identities) StreamsFor(userID string) []uint32 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []uint32
	for ssrc, u := range i.byStream {
		if u == userID {
			out = append(out, ssrc)
		}
	}
	return out
}

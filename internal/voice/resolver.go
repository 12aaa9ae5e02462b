package voice

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// cacheTTL controls how long a resolved username stays valid.
var cacheTTL = 5 * time.Minute

// NameCache resolves Discord user IDs to usernames with a small TTL cache,
// so finalization doesn't hit the REST API for every utterance.
type NameCache struct {
	s  *discordgo.Session
	mu sync.Mutex

	users map[string]cacheEntry
}

type cacheEntry struct {
	val    string
	expiry time.Time
}

func NewNameCache(s *discordgo.Session) *NameCache {
	return &NameCache{
		s:     s,
		users: make(map[string]cacheEntry),
	}
}

func (c *NameCache) UserName(userID string) (string, bool) {
	if c.s == nil || userID == "" {
		return "", false
	}
	c.mu.Lock()
	if e, ok := c.users[userID]; ok {
		if time.Now().Before(e.expiry) {
			c.mu.Unlock()
			return e.val, true
		}
		delete(c.users, userID)
	}
	c.mu.Unlock()

	u, err := c.s.User(userID)
	if err != nil || u == nil {
		return "", false
	}
	c.mu.Lock()
	c.users[userID] = cacheEntry{val: u.Username, expiry: time.Now().Add(cacheTTL)}
	c.mu.Unlock()
	return u.Username, true
}

package store

import (
	"sync"
	"time"

	"github.com/kindredapp/kindred/model"
)

// Both caches here follow the same pattern: mutex-guarded map with
// per-entry expiry and a periodic sweep. Stale-but-unexpired reads are an
// accepted tradeoff for freshness versus load.

type messageCacheEntry struct {
	messages  []model.Message
	expiresAt time.Time
}

type messageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]messageCacheEntry
	now     func() time.Time
}

func newMessageCache(ttl time.Duration, now func() time.Time) *messageCache {
	return &messageCache{
		ttl:     ttl,
		entries: make(map[string]messageCacheEntry),
		now:     now,
	}
}

func (c *messageCache) get(matchID string) ([]model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[matchID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	out := make([]model.Message, len(entry.messages))
	copy(out, entry.messages)
	return out, true
}

func (c *messageCache) put(matchID string, messages []model.Message) {
	stored := make([]model.Message, len(messages))
	copy(stored, messages)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[matchID] = messageCacheEntry{
		messages:  stored,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *messageCache) invalidate(matchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, matchID)
}

func (c *messageCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

type urlCacheEntry struct {
	url       string
	expiresAt time.Time
}

type urlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]urlCacheEntry
	now     func() time.Time
}

func newURLCache(ttl time.Duration, now func() time.Time) *urlCache {
	return &urlCache{
		ttl:     ttl,
		entries: make(map[string]urlCacheEntry),
		now:     now,
	}
}

func (c *urlCache) get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || c.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.url, true
}

func (c *urlCache) put(path, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = urlCacheEntry{url: url, expiresAt: c.now().Add(c.ttl)}
}

func (c *urlCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

package prices

import (
	"sync"
	"time"
)

// quoteCache is a small in-process TTL cache for fetched quotes. Entries
// expire lazily on read; with a non-positive TTL the cache stores nothing.
type quoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]quoteEntry
}

type quoteEntry struct {
	price    float64
	storedAt time.Time
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	return &quoteCache{
		ttl:     ttl,
		entries: make(map[string]quoteEntry),
	}
}

func (c *quoteCache) get(key string) (float64, bool) {
	if c.ttl <= 0 {
		return 0, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Since(entry.storedAt) > c.ttl {
		return 0, false
	}
	return entry.price, true
}

func (c *quoteCache) set(key string, price float64) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = quoteEntry{price: price, storedAt: time.Now()}
	c.mu.Unlock()
}

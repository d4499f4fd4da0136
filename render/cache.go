// ABOUTME: In-memory cache in front of a render Func, keyed by sha256 of the DOT text and the format.
// ABOUTME: Entries expire after a TTL and errors are never cached.
package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cacheEntry struct {
	data      []byte
	createdAt time.Time
}

// Cache wraps a Func with TTL-bounded memoization. Safe for concurrent use.
type Cache struct {
	fn  Func
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache returns a Cache over fn.
func NewCache(fn Func, ttl time.Duration) *Cache {
	return &Cache{fn: fn, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

// Render returns the cached output for (dotText, format) or renders and stores it.
// Expired entries are dropped whenever a new result is stored.
func (c *Cache) Render(ctx context.Context, dotText, format string) ([]byte, error) {
	key := cacheKey(dotText, format)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.createdAt) < c.ttl {
		return entry.data, nil
	}

	data, err := c.fn(ctx, dotText, format)
	if err != nil {
		return nil, err
	}

	now := c.now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{data: data, createdAt: now}
	c.mu.Unlock()
	return data, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(dotText, format string) string {
	sum := sha256.Sum256([]byte(dotText))
	return hex.EncodeToString(sum[:]) + ":" + format
}

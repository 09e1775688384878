// ABOUTME: Thread-safe TTL cache for suppressing duplicate inbound messages
// ABOUTME: Keys combine platform, sender and message ID; oldest entries are evicted at capacity

package dedupe

import (
	"sync"
	"time"
)

// Cache tracks recently seen message keys so redelivered payloads are
// processed exactly once. Entries expire after a TTL; when the cache is
// full the oldest entry is evicted. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	order   []string // keys in insertion order, oldest first
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size.
// A background goroutine sweeps expired entries periodically.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Seen atomically checks whether key was seen within the TTL and marks it.
// Returns true for a duplicate, false when the key is new and now marked.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.seen[key]; ok && time.Since(ts) < c.ttl {
		return true
	}

	if _, exists := c.seen[key]; !exists {
		if len(c.seen) >= c.maxSize {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.seen[key] = time.Now()
	return false
}

// Forget unmarks a key so its next sighting is not a duplicate. Callers use
// this to allow retries after a transient downstream failure.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
}

// Len returns the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldestLocked drops the oldest still-tracked key. Must hold mu.
func (c *Cache) evictOldestLocked() {
	for len(c.order) > 0 {
		key := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.seen[key]; ok {
			delete(c.seen, key)
			return
		}
	}
}

// sweep periodically removes expired entries so the map does not hold dead
// keys for the life of the process.
func (c *Cache) sweep() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			live := c.order[:0]
			for _, key := range c.order {
				ts, ok := c.seen[key]
				if !ok {
					continue
				}
				if now.Sub(ts) >= c.ttl {
					delete(c.seen, key)
					continue
				}
				live = append(live, key)
			}
			c.order = live
			c.mu.Unlock()
		}
	}
}

// Close stops the background sweeper. Idempotent.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

// Package destcache is the TTL-bounded mapping from device identifier to
// last-known-good MIDI destination, used exclusively by the Send Strategy.
package destcache

import (
	"sync"
	"time"

	"github.com/midi2dev/pe-engine/pkg/wire"
)

// Entry is one cached destination for a DUID.
type Entry struct {
	Destination  wire.Destination
	LastSuccess  time.Time
	SuccessCount int
}

// Cache is a TTL-bounded DUID -> Entry map, safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[wire.DUID]Entry
}

// New creates a Cache whose entries expire after ttl of inactivity.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[wire.DUID]Entry),
	}
}

// RecordSuccess records that dest answered for duid at now. A different
// destination for the same DUID replaces the entry and resets the success
// count to 1; a repeat of the same destination increments the count.
func (c *Cache) RecordSuccess(duid wire.DUID, dest wire.Destination, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.entries[duid]
	if ok && existing.Destination == dest {
		existing.SuccessCount++
		existing.LastSuccess = now
		c.entries[duid] = existing
		return
	}
	c.entries[duid] = Entry{Destination: dest, LastSuccess: now, SuccessCount: 1}
}

// GetCached returns the cached destination for duid, or ok=false if absent
// or the entry's age exceeds the TTL (in which case the stale entry is
// removed as a side effect).
func (c *Cache) GetCached(duid wire.DUID, now time.Time) (wire.Destination, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[duid]
	if !ok {
		return "", false
	}
	if now.Sub(entry.LastSuccess) > c.ttl {
		delete(c.entries, duid)
		return "", false
	}
	return entry.Destination, true
}

// Invalidate removes duid's entry unconditionally.
func (c *Cache) Invalidate(duid wire.DUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, duid)
}

// PruneStale removes every entry older than the TTL as of now.
func (c *Cache) PruneStale(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for duid, entry := range c.entries {
		if now.Sub(entry.LastSuccess) > c.ttl {
			delete(c.entries, duid)
		}
	}
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[wire.DUID]Entry)
}

package facets

import (
	"sync"
	"time"
)

// Entry is a cached option list and when it was fetched
type Entry struct {
	Options   []Option
	FetchedAt time.Time
}

// SessionCache is a process-local option cache. Entries past the TTL are
// reported stale but kept, so a failed refresh can still serve them.
type SessionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[Key]Entry
}

// NewSessionCache creates a cache whose entries are fresh for ttl
func NewSessionCache(ttl time.Duration) *SessionCache {
	return &SessionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]Entry),
	}
}

// Get returns the entry for key, fresh or not
func (c *SessionCache) Get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key, replacing any previous one
func (c *SessionCache) Put(key Key, entry Entry) {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = c.now()
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// IsFresh reports whether entry is still inside the TTL
func (c *SessionCache) IsFresh(entry Entry) bool {
	return c.now().Sub(entry.FetchedAt) < c.ttl
}

// DeleteFacet drops every cached query of the given facets, or everything
// when none are named
func (c *SessionCache) DeleteFacet(facets ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(facets) == 0 {
		c.entries = make(map[Key]Entry)
		return
	}
	drop := make(map[string]struct{}, len(facets))
	for _, f := range facets {
		drop[f] = struct{}{}
	}
	for k := range c.entries {
		if _, ok := drop[k.Facet]; ok {
			delete(c.entries, k)
		}
	}
}

// Len is the number of entries, fresh or stale
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package adminexec

import (
	"sync"
	"time"
)

// DefaultCapabilityTTL is how long a direct-route verdict is trusted.
const DefaultCapabilityTTL = 10 * time.Minute

type capabilityEntry struct {
	supported bool
	expiresAt time.Time
}

// CapabilityCache remembers whether the direct route supports a
// domain:action pair. Entries are advisory.
type CapabilityCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]capabilityEntry
}

// NewCapabilityCache returns an empty cache. now may be nil.
func NewCapabilityCache(ttl time.Duration, now func() time.Time) *CapabilityCache {
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CapabilityCache{ttl: ttl, now: now, entries: map[string]capabilityEntry{}}
}

func capabilityKey(domain, action string) string {
	return domain + ":" + action
}

// Lookup returns the cached verdict when one is live.
func (c *CapabilityCache) Lookup(domain, action string) (supported, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := capabilityKey(domain, action)
	entry, ok := c.entries[key]
	if !ok {
		return false, false
	}
	if !entry.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return false, false
	}
	return entry.supported, true
}

// Store records a verdict.
func (c *CapabilityCache) Store(domain, action string, supported bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[capabilityKey(domain, action)] = capabilityEntry{
		supported: supported,
		expiresAt: c.now().Add(c.ttl),
	}
}

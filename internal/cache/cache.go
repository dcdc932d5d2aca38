package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is keyed raw-bytes storage with TTL. Get returns fresh entries only;
// GetStale also returns entries past their TTL so callers can fall back to
// stale data when the upstream is down. Backends retain entries for the TTL
// plus a stale window.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetStale(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DefaultStaleWindow is how long entries remain retrievable via GetStale
// after their TTL expires, when no window is configured.
const DefaultStaleWindow = 24 * time.Hour

// InMemoryCache implements Cache using a mutex-guarded map. Entries past
// their stale window are removed on access.
type InMemoryCache struct {
	mu          sync.RWMutex
	data        map[string]memoryEntry
	staleWindow time.Duration
}

// memoryEntry stores a cached payload with its freshness metadata.
type memoryEntry struct {
	payload    []byte
	storedAt   time.Time
	freshUntil time.Time
	evictAt    time.Time
}

// NewInMemoryCache creates an in-memory cache. staleWindow controls how long
// expired entries stay available via GetStale; zero uses DefaultStaleWindow.
func NewInMemoryCache(staleWindow time.Duration) *InMemoryCache {
	if staleWindow <= 0 {
		staleWindow = DefaultStaleWindow
	}
	return &InMemoryCache{
		data:        make(map[string]memoryEntry),
		staleWindow: staleWindow,
	}
}

// Get returns the payload for key while it is fresh. An expired entry is a
// miss, but stays retrievable via GetStale until its stale window ends.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	now := time.Now()
	if now.After(entry.evictAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	if now.After(entry.freshUntil) {
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// GetStale returns the payload for key regardless of freshness, along with
// when it was stored. Only entries past their stale window are misses.
func (c *InMemoryCache) GetStale(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, false, nil
	}

	if time.Now().After(entry.evictAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, time.Time{}, false, nil
	}
	return entry.payload, entry.storedAt, true, nil
}

// Set stores the payload with the given TTL. The entry serves fresh reads
// until the TTL elapses and stale reads for the stale window after that.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	c.mu.Lock()
	c.data[key] = memoryEntry{
		payload:    value,
		storedAt:   now,
		freshUntil: now.Add(ttl),
		evictAt:    now.Add(ttl + c.staleWindow),
	}
	c.mu.Unlock()
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "climate:"

// envelope wraps a cached payload with freshness metadata. Memcached entries
// live for TTL plus the stale window; logical freshness is enforced from the
// envelope so expired-but-present entries can still serve stale reads.
type envelope struct {
	Payload    []byte    `json:"payload"`
	StoredAt   time.Time `json:"storedAt"`
	FreshUntil time.Time `json:"freshUntil"`
}

// MemcachedCache implements Cache using memcached.
type MemcachedCache struct {
	client      *memcache.Client
	staleWindow time.Duration
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
// staleWindow zero uses DefaultStaleWindow.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, staleWindow time.Duration) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if staleWindow <= 0 {
		staleWindow = DefaultStaleWindow
	}
	return &MemcachedCache{client: client, staleWindow: staleWindow}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

func (c *MemcachedCache) fetch(ctx context.Context, key string) (envelope, bool, error) {
	if ctx.Err() != nil {
		return envelope{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return envelope{}, false, nil
		}
		return envelope{}, false, err
	}
	var env envelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return envelope{}, false, err
	}
	return env, true, nil
}

// Get implements Cache.Get. Returns false, nil on miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if time.Now().After(env.FreshUntil) {
		return nil, false, nil
	}
	return env.Payload, true, nil
}

// GetStale implements Cache.GetStale. Entries are returned until memcached
// evicts them at the end of the stale window.
func (c *MemcachedCache) GetStale(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return nil, time.Time{}, false, err
	}
	return env.Payload, env.StoredAt, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := time.Now()
	raw, err := json.Marshal(envelope{
		Payload:    value,
		StoredAt:   now,
		FreshUntil: now.Add(ttl),
	})
	if err != nil {
		return err
	}
	expSec := int32((ttl + c.staleWindow).Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600 // fallback 1h if invalid
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}

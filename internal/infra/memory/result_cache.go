package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// ResultCache is an in-process implementation of app.ResultCache with per-entry TTL.
type ResultCache struct {
	clock func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.RWMutex
	entries map[string]cachedResult
}

type cachedResult struct {
	value     []byte
	expiresAt time.Time
}

func NewResultCache() *ResultCache {
	return NewResultCacheWithClock(time.Now)
}

// NewResultCacheWithClock is test-only for deterministic expiry.
func NewResultCacheWithClock(now func() time.Time) *ResultCache {
	return &ResultCache{
		clock:   now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]cachedResult),
	}
}

func (c *ResultCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := c.clock()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.After(now) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && !current.expiresAt.After(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Put stores value for ttl minus up to 10% jitter, so it never outlives ttl. A non-positive ttl stores nothing.
func (c *ResultCache) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	expiresAt := c.clock().Add(c.ttlWithJitter(ttl))
	c.mu.Lock()
	c.entries[key] = cachedResult{value: append([]byte(nil), value...), expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

func (c *ResultCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *ResultCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResultCache) ttlWithJitter(ttl time.Duration) time.Duration {
	// shave up to 10% off to spread expirations
	jitterMax := int64(ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return ttl - time.Duration(c.rnd.Int63n(jitterMax+1))
}

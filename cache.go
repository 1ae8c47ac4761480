package reroute

import (
	"context"
	"sync"
	"time"
)

// CacheStore holds serialized responses keyed by (route, method, resolved
// parameters). Implementations must keep read-or-populate consistent under
// concurrent access: two concurrent misses may both populate, but later
// reads observe one consistent value.
type CacheStore interface {
	// Get returns the stored value and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes one key.
	Delete(ctx context.Context, key string) error
	// Close releases store resources.
	Close() error
}

// CacheStats reports hit/miss counters for a cache store.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// HitRate returns the hit percentage, or 0 when unused.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheConfig configures a MemoryCache.
type MemoryCacheConfig struct {
	// SweepInterval is how often the background sweep evicts expired
	// entries. Zero disables the sweep; expired entries are then evicted
	// lazily on read.
	SweepInterval time.Duration
	// Now overrides the clock (for tests). Default: time.Now.
	Now func() time.Time
}

// MemoryCache is the in-process CacheStore. Construct one at process
// start, inject it into the Engine, and Close it at process end.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int64
	misses  int64
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryCache creates a MemoryCache and starts its sweep loop when a
// sweep interval is configured.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     cfg.Now,
		stop:    make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if cfg.SweepInterval > 0 {
		go c.sweepLoop(cfg.SweepInterval)
	}
	return c
}

// Get implements CacheStore. Reading past an entry's expiry evicts it.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false, nil
	}
	c.hits++
	return e.value, true, nil
}

// Set implements CacheStore.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete implements CacheStore.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Close stops the sweep loop.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// Reset drops every entry but keeps counters.
func (c *MemoryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Stats returns current counters and entry count.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

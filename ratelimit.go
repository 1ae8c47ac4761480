package reroute

import (
	"context"
	"sync"
	"time"
)

// RateLimitStore counts hits against fixed windows. Implementations must
// make the read-check-increment sequence atomic per key so concurrent
// requests cannot observe a torn bucket.
type RateLimitStore interface {
	// Incr records one hit against key within the window containing now
	// and returns the resulting count for that window. Crossing a window
	// boundary resets the count; boundaries are not sliding.
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// rateBucket holds one key's state: the index of the window it was last
// hit in, and the count within that window.
type rateBucket struct {
	window int64
	count  int
}

// MemoryRateLimitStore is the in-process RateLimitStore. Construct one at
// process start and inject it into the Engine; per-test stores keep tests
// isolated.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

// NewMemoryRateLimitStore creates an empty in-memory store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{buckets: make(map[string]*rateBucket)}
}

// Incr implements RateLimitStore. The window index is derived from wall
// clock time; a bucket whose stored index differs from the current one is
// reset before counting, all under one lock acquisition.
func (s *MemoryRateLimitStore) Incr(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	idx := now.UnixNano() / window.Nanoseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &rateBucket{window: idx}
		s.buckets[key] = b
	}
	if b.window != idx {
		b.window = idx
		b.count = 0
	}
	b.count++
	return b.count, nil
}

// Reset clears the bucket for one key.
func (s *MemoryRateLimitStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// ResetAll clears every bucket.
func (s *MemoryRateLimitStore) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*rateBucket)
}

// Len returns the number of tracked buckets.
func (s *MemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Sweep drops buckets whose window predates the one containing now, so
// long-lived processes do not accumulate one bucket per caller forever.
func (s *MemoryRateLimitStore) Sweep(window time.Duration, now time.Time) {
	idx := now.UnixNano() / window.Nanoseconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if b.window < idx {
			delete(s.buckets, key)
		}
	}
}

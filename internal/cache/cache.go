// Package cache provides the best-effort key-value cache used around the
// expensive embedding and generation calls, plus the deterministic key
// derivation for both cache namespaces.
//
// The cache is strictly advisory: every implementation degrades to a miss or
// a no-op on failure and never surfaces an error to callers. Absence or
// staleness can only cost recomputation, never correctness.
package cache

import (
	"context"
	"sync"
	"time"
)

// Default TTLs for the two cache namespaces.
const (
	// EmbeddingTTL bounds how long a cached embedding vector lives.
	// Embeddings are deterministic per model, so a long TTL is safe.
	EmbeddingTTL = 24 * time.Hour

	// QueryTTL bounds how long a cached query result lives. Shorter than the
	// embedding TTL because newly ingested material should become visible
	// within the hour.
	QueryTTL = time.Hour
)

// Cache is the best-effort key-value store contract. Get reports a miss for
// any failure (unreachable backend, expired entry, corrupt value) and Set
// silently drops writes it cannot complete — the signatures carry no error
// because callers must never fail on cache trouble.
// Implementations must be safe to call from multiple goroutines.
type Cache interface {
	// Get returns the cached value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key with the given TTL, best-effort.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Noop is a Cache that stores nothing. Used when caching is disabled.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }

// Set drops the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) {}

// entry is one value plus its expiry in a Memory cache.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with per-entry TTLs. Expired entries are
// evicted lazily on read. Suitable for tests and single-process deployments
// without a Redis instance.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory constructs an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Get returns the cached value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key until ttl elapses.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Package memory provides an in-process embedding cache with optional expiry
// and a bounded entry count.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

var _ driven.EmbeddingCache = (*Cache)(nil)

// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 50000

// Config configures the memory cache.
type Config struct {
	// TTL expires entries; zero keeps them until evicted.
	TTL time.Duration

	// MaxEntries bounds the number of cached vectors.
	MaxEntries int

	// Now overrides the clock in tests.
	Now func() time.Time
}

type entry struct {
	vec     []float32
	expires time.Time
}

// Cache is a map-backed EmbeddingCache. When full, an arbitrary entry is
// evicted to make room.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// New creates a memory cache.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     cfg.TTL,
		max:     cfg.MaxEntries,
		now:     cfg.Now,
	}
}

// Get returns a copy of the cached vector.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]float32(nil), e.vec...), true, nil
}

// Set stores a copy of vec.
func (c *Cache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	e := entry{vec: append([]float32(nil), vec...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops all entries.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

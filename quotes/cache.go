package quotes

import (
	"context"
	"sync"
	"time"

	"crypto-tracker/models"
)

// Snapshot is the quote mapping from the most recent successful refresh.
// A zero UpdatedAt means the cache has never been filled.
type Snapshot struct {
	Quotes    map[string]models.Quote `json:"data"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Cache holds the latest quote mapping. Replace swaps the whole mapping;
// there is no per-symbol expiry.
type Cache interface {
	Replace(ctx context.Context, quotes map[string]models.Quote, at time.Time) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// MemoryCache keeps the snapshot in process memory.
type MemoryCache struct {
	mu        sync.RWMutex
	quotes    map[string]models.Quote
	updatedAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{quotes: map[string]models.Quote{}}
}

func (c *MemoryCache) Replace(_ context.Context, quotes map[string]models.Quote, at time.Time) error {
	next := make(map[string]models.Quote, len(quotes))
	for k, v := range quotes {
		next[k] = v
	}
	c.mu.Lock()
	c.quotes = next
	c.updatedAt = at
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Snapshot(_ context.Context) (Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.Quote, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return Snapshot{Quotes: out, UpdatedAt: c.updatedAt}, nil
}

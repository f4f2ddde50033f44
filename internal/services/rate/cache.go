package rate

import (
	"context"
	"sync"

	"github.com/tonex/tonex/internal/domain"
)

// Cache holds the most recent snapshot per pair. A snapshot past its TTL is
// still returned: the provider decides whether it is fresh, and expired
// entries are what stale fallback serves from.
type Cache interface {
	Get(ctx context.Context, pair domain.Pair) (domain.RateSnapshot, bool, error)
	Set(ctx context.Context, snapshot domain.RateSnapshot) error
}

// MemCache is a process-wide in-memory rate cache. Empty at init, refreshed
// by the provider, gone with the process.
type MemCache struct {
	mu        sync.RWMutex
	snapshots map[string]domain.RateSnapshot
}

func NewMemCache() *MemCache {
	return &MemCache{snapshots: make(map[string]domain.RateSnapshot)}
}

func (c *MemCache) Get(_ context.Context, pair domain.Pair) (domain.RateSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snapshots[pair.String()]
	return snap, ok, nil
}

func (c *MemCache) Set(_ context.Context, snapshot domain.RateSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshots[snapshot.Pair.String()] = snapshot
	return nil
}

package cache

import (
	"sync"

	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

type Cache interface {
	Reset()
}

// DirectionCache shares classified direction series between sweep points that
// use the same column rules. Points that differ only in profit and loss levels
// read the same series. Safe for concurrent use.
type DirectionCache struct {
	mu      sync.Mutex
	entries map[string]*directionEntry
}

type directionEntry struct {
	once       sync.Once
	directions []types.Direction
}

func NewDirectionCache() *DirectionCache {
	return &DirectionCache{
		entries: make(map[string]*directionEntry),
	}
}

// GetOrCompute returns the series stored under key, calling compute exactly
// once per key. Callers must not modify the returned slice.
func (c *DirectionCache) GetOrCompute(key string, compute func() []types.Direction) []types.Direction {
	c.mu.Lock()

	entry, ok := c.entries[key]
	if !ok {
		entry = &directionEntry{}
		c.entries[key] = entry
	}

	c.mu.Unlock()

	entry.once.Do(func() {
		entry.directions = compute()
	})

	return entry.directions
}

// Len returns the number of cached series.
func (c *DirectionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Reset implements cache.Cache.
func (c *DirectionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*directionEntry)
}

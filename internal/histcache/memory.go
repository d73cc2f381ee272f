package histcache

import (
	"context"
	"sync"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// Memory is the in-process cache used when no Redis is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (c *Memory) Get(_ context.Context, metal metals.Metal, day time.Time) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key(metal, day)]
	return e, ok
}

func (c *Memory) Put(_ context.Context, metal metals.Metal, day time.Time, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(metal, day)] = e
}

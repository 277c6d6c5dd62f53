package metadata

import (
	"context"
	"sync"
)

// Cache memoizes complete answers of a resolver.
// Incomplete answers are not cached so a later lookup can fill them in.
type Cache struct {
	next Resolver

	mu      sync.RWMutex
	entries map[string]Info
}

// NewCache wraps next with an in-memory cache.
func NewCache(next Resolver) *Cache {
	return &Cache{
		next:    next,
		entries: make(map[string]Info),
	}
}

var _ Resolver = (*Cache)(nil)

// Resolve returns a cached answer or queries the wrapped resolver.
func (c *Cache) Resolve(ctx context.Context, mint string) (Info, error) {
	c.mu.RLock()
	info, ok := c.entries[mint]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	info, err := c.next.Resolve(ctx, mint)
	if err != nil {
		return Info{}, err
	}

	if info.Complete() {
		c.mu.Lock()
		c.entries[mint] = info
		c.mu.Unlock()
	}
	return info, nil
}

// Len returns the number of cached mints.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

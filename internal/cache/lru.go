package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const backendLRU = "lru"

// LRU is an in-process Cache with a size bound and per-entry TTL.
// Each instance keeps its own copy; invalidation is local.
type LRU struct {
	lru *expirable.LRU[string, []byte]
}

// NewLRU creates an LRU holding at most size entries for ttl each.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get implements Cache.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	observe(backendLRU, ok)
	return v, ok, nil
}

// Set implements Cache.
func (c *LRU) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// InvalidateAll implements Cache.
func (c *LRU) InvalidateAll(context.Context) error {
	c.lru.Purge()
	cacheInvalidationsTotal.WithLabelValues(backendLRU).Inc()
	return nil
}

// Ping implements Cache.
func (c *LRU) Ping(context.Context) error { return nil }

// Len reports the number of live entries.
func (c *LRU) Len() int { return c.lru.Len() }

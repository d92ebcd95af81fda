// Package cache holds serialized catalog pages between mutations. Two
// backends exist: a per-instance expirable LRU and a shared Redis store.
// Both invalidate wholesale: any content mutation can reorder every page,
// so per-key invalidation buys nothing.
package cache

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Catalog page cache hits.",
	}, []string{"backend"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Catalog page cache misses.",
	}, []string{"backend"})
	cacheInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_invalidations_total",
		Help: "Wholesale catalog cache invalidations.",
	}, []string{"backend"})
)

// Cache stores opaque byte payloads keyed by string.
type Cache interface {
	// Get returns (value, true, nil) on a hit and (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the backend's TTL.
	Set(ctx context.Context, key string, value []byte) error
	// InvalidateAll makes every previously stored key miss.
	InvalidateAll(ctx context.Context) error
	// Ping checks backend health.
	Ping(ctx context.Context) error
}

func observe(backend string, hit bool) {
	if hit {
		cacheHitsTotal.WithLabelValues(backend).Inc()
		return
	}
	cacheMissesTotal.WithLabelValues(backend).Inc()
}

package placefile

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
)

// CachedTransposer wraps a Transposer with an in-memory LRU cache. Placefiles
// repeat the same station and warning vertices many times, so most lookups hit.
type CachedTransposer struct {
	inner   domain.Transposer
	cache   *lru.Cache[domain.Point, domain.Point]
	metrics *observability.Metrics
}

// NewCachedTransposer creates a cache decorator around a transposer.
func NewCachedTransposer(inner domain.Transposer, maxEntries int, metrics *observability.Metrics) (*CachedTransposer, error) {
	cache, err := lru.New[domain.Point, domain.Point](maxEntries)
	if err != nil {
		return nil, err
	}
	return &CachedTransposer{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedTransposer) Transpose(p domain.Point) domain.Point {
	if out, ok := c.cache.Get(p); ok {
		c.metrics.TransposeCache.WithLabelValues("hit").Inc()
		return out
	}
	c.metrics.TransposeCache.WithLabelValues("miss").Inc()
	out := c.inner.Transpose(p)
	c.cache.Add(p, out)
	return out
}

// Len reports the number of cached points.
func (c *CachedTransposer) Len() int {
	return c.cache.Len()
}

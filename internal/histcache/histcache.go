// Package histcache caches resolved historical prices. Prices for a
// past date never change, so entries live forever; the cache exists to
// keep repeat lookups and batch requests off the slow upstream tiers.
package histcache

import (
	"context"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// Entry is one cached resolution for a (metal, day) pair.
type Entry struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

// Cache is the lookup-cache port. Get returns ok=false on a miss or
// any backend error; callers fall through to the resolver tiers.
type Cache interface {
	Get(ctx context.Context, metal metals.Metal, day time.Time) (Entry, bool)
	Put(ctx context.Context, metal metals.Metal, day time.Time, e Entry)
}

func key(metal metals.Metal, day time.Time) string {
	return "hist:" + string(metal) + ":" + day.UTC().Format("2006-01-02")
}

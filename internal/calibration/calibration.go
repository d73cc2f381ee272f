// Package calibration maintains the daily ETF-to-spot ratios. The
// ratio for a metal is its observed spot price divided by the proxy
// ETF's closing price; it drifts slowly (fund expenses, tracking
// error), so one recomputation per day is enough.
package calibration

import (
	"context"
	"errors"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// ErrNoRatio is returned by stores when no row exists at or before the
// requested date.
var ErrNoRatio = errors.New("calibration: no ratio on or before date")

// Ratios maps each metal to its spot/ETF ratio for one date.
type Ratios map[metals.Metal]float64

// Store persists one ratio row per metal per date.
type Store interface {
	// InsertDay writes the rows for a single day. Implementations must
	// reject or ignore a second write for the same (metal, day).
	InsertDay(ctx context.Context, day time.Time, ratios Ratios) error
	// ExistsForDay reports whether any ratio row exists for the day.
	ExistsForDay(ctx context.Context, day time.Time) (bool, error)
	// ForDate returns the rows for the exact date, or the nearest
	// earlier date. ErrNoRatio when nothing precedes the date.
	ForDate(ctx context.Context, day time.Time) (Ratios, error)
}

// DefaultRatios is the documented hardcoded fallback used when the
// store has no calibration at all, so ETF conversion is never blocked.
// Values reflect long-run fund ratios: GLD holds ~1/10 oz per share,
// SLV ~0.9 oz, PPLT and PALL ~1/10 oz.
func DefaultRatios() Ratios {
	return Ratios{
		metals.Gold:      10.77,
		metals.Silver:    1.11,
		metals.Platinum:  10.85,
		metals.Palladium: 11.05,
	}
}

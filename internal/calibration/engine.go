package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
	"github.com/metalfolio/price-engine/internal/sources"
)

// Engine computes and persists the daily ratios. It is scheduled
// opportunistically after successful live refreshes, never on a timer,
// and a failure must never propagate to the refresh that triggered it.
type Engine struct {
	store Store
	bars  sources.BarSource
	now   func() time.Time
}

func NewEngine(store Store, bars sources.BarSource) *Engine {
	return &Engine{store: store, bars: bars, now: time.Now}
}

// NeedsCalibration is true iff no ratio row exists for today (UTC).
func (e *Engine) NeedsCalibration(ctx context.Context) bool {
	exists, err := e.store.ExistsForDay(ctx, metals.Day(e.now()))
	if err != nil {
		observ.Log("calibration_check_failed", map[string]any{"error": err.Error()})
		return false
	}
	return !exists
}

// Calibrate computes today's ratio per metal from the observed spot
// prices and the latest ETF closes, then persists one row per metal.
// Idempotent per day: a second call is a no-op.
func (e *Engine) Calibrate(ctx context.Context, spots metals.Prices) error {
	today := metals.Day(e.now())
	exists, err := e.store.ExistsForDay(ctx, today)
	if err != nil {
		return fmt.Errorf("check existing calibration: %w", err)
	}
	if exists {
		return nil
	}

	ratios := make(Ratios, len(spots))
	for _, m := range metals.All() {
		spot, ok := spots[m]
		if !ok || spot <= 0 {
			continue
		}
		close, err := e.bars.LatestClose(ctx, m.ETFSymbol())
		if err != nil {
			observ.Log("calibration_close_unavailable", map[string]any{
				"metal": string(m), "error": err.Error(),
			})
			continue
		}
		ratios[m] = spot / close
	}
	if len(ratios) == 0 {
		return fmt.Errorf("calibration produced no ratios")
	}

	if err := e.store.InsertDay(ctx, today, ratios); err != nil {
		return fmt.Errorf("persist calibration: %w", err)
	}
	observ.IncCounter("calibrations_total", nil)
	observ.Log("calibration_complete", map[string]any{
		"date": today.Format("2006-01-02"), "metals": len(ratios),
	})
	return nil
}

// RatiosForDate returns the calibration for a date, falling back to
// the nearest earlier date and finally to the hardcoded defaults.
// Missing individual metals are filled from defaults too, so callers
// always get a usable ratio for every metal.
func (e *Engine) RatiosForDate(ctx context.Context, day time.Time) Ratios {
	out := DefaultRatios()
	stored, err := e.store.ForDate(ctx, metals.Day(day))
	if err != nil {
		if !errors.Is(err, ErrNoRatio) {
			observ.Log("calibration_lookup_failed", map[string]any{"error": err.Error()})
		}
		return out
	}
	for m, r := range stored {
		if r > 0 {
			out[m] = r
		}
	}
	return out
}

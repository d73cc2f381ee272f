// Package livecache owns the current best-known spot prices. One
// instance is constructed at startup and injected into the handlers;
// there is no package-level state.
package livecache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/metalfolio/price-engine/internal/calibration"
	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
	"github.com/metalfolio/price-engine/internal/pricelog"
	"github.com/metalfolio/price-engine/internal/sources"
)

// DefaultMaxAge is the staleness threshold for RefreshIfStale.
const DefaultMaxAge = 10 * time.Minute

// Change is the day-over-day movement for one metal.
type Change struct {
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// State is the cache's observable value. Prices and Change are copies;
// callers may keep them.
type State struct {
	Prices        metals.Prices
	LastUpdated   *time.Time
	Source        string
	Change        map[metals.Metal]Change
	MarketsClosed bool
}

func (s State) copy() State {
	out := s
	out.Prices = s.Prices.Copy()
	out.Change = make(map[metals.Metal]Change, len(s.Change))
	for m, c := range s.Change {
		out.Change[m] = c
	}
	if s.LastUpdated != nil {
		ts := *s.LastUpdated
		out.LastUpdated = &ts
	}
	return out
}

// fridayClose is the reading frozen over a market closure.
type fridayClose struct {
	prices metals.Prices
	taken  time.Time
}

// Cache orchestrates refreshes from the live source with fallback and
// serves the frozen Friday close while markets are closed.
type Cache struct {
	live       sources.LiveSource
	calibrator *calibration.Engine
	recorder   *pricelog.Recorder
	isClosed   func(time.Time) bool
	now        func() time.Time

	refreshTimeout time.Duration

	mu     sync.Mutex // guards state and friday
	state  State
	friday *fridayClose

	sf singleflight.Group
}

// Option customizes a Cache.
type Option func(*Cache)

// WithCalibrator wires the calibration engine triggered after
// successful refreshes.
func WithCalibrator(e *calibration.Engine) Option {
	return func(c *Cache) { c.calibrator = e }
}

// WithRecorder wires the background snapshot recorder.
func WithRecorder(r *pricelog.Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// WithClock overrides the time source and market-closed check.
func WithClock(now func() time.Time, isClosed func(time.Time) bool) Option {
	return func(c *Cache) {
		c.now = now
		c.isClosed = isClosed
	}
}

// WithRefreshTimeout bounds each upstream refresh call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) { c.refreshTimeout = d }
}

// New creates a cache primed with the static fallback prices.
func New(live sources.LiveSource, opts ...Option) *Cache {
	c := &Cache{
		live:           live,
		isClosed:       func(time.Time) bool { return false },
		now:            time.Now,
		refreshTimeout: 5 * time.Second,
		state: State{
			Prices: sources.FallbackPrices(),
			Source: metals.SourceStaticFallback,
			Change: zeroChange(),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func zeroChange() map[metals.Metal]Change {
	out := make(map[metals.Metal]Change, 4)
	for _, m := range metals.All() {
		out[m] = Change{}
	}
	return out
}

// Get returns the current cache state. While markets are closed it
// serves the frozen Friday-close snapshot with change zeroed; if no
// snapshot was captured before the closure it self-heals by freezing
// the current state on first encounter.
func (c *Cache) Get(ctx context.Context) State {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed(now) {
		if c.friday == nil {
			c.friday = &fridayClose{prices: c.state.Prices.Copy(), taken: now}
			observ.Log("friday_close_captured", map[string]any{"reason": "self_heal"})
		}
		taken := c.friday.taken
		return State{
			Prices:        c.friday.prices.Copy(),
			LastUpdated:   &taken,
			Source:        c.state.Source,
			Change:        zeroChange(),
			MarketsClosed: true,
		}
	}
	return c.state.copy()
}

// RefreshIfStale refreshes only when the cache is older than maxAge
// (DefaultMaxAge when zero). Overlapping triggers share one in-flight
// refresh, so two stale reads cost one upstream call. While markets
// are closed with a frozen snapshot available, nothing is refreshed.
func (c *Cache) RefreshIfStale(ctx context.Context, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := c.now()

	c.mu.Lock()
	frozen := c.isClosed(now) && c.friday != nil
	fresh := c.state.LastUpdated != nil && now.Sub(*c.state.LastUpdated) <= maxAge
	c.mu.Unlock()

	if frozen || fresh {
		return
	}
	c.Refresh(ctx)
}

// Refresh fetches from the live source and overwrites the cache. On
// upstream failure it degrades: existing prices become source "cache",
// and with no prior refresh the hardcoded fallback is kept. It never
// returns an error; the fallback chain guarantees a usable state.
func (c *Cache) Refresh(ctx context.Context) State {
	v, _, _ := c.sf.Do("refresh", func() (any, error) {
		return c.refresh(), nil
	})
	return v.(State)
}

func (c *Cache) refresh() State {
	// Detached from the callers' contexts: the refresh outcome is
	// shared by every waiter, so no single caller may cancel it.
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	prices, err := c.live.Current(ctx)
	now := c.now()

	c.mu.Lock()
	if err != nil {
		if c.state.LastUpdated != nil {
			c.state.Source = metals.SourceCache
		} else {
			c.state.Prices = sources.FallbackPrices()
			c.state.Source = metals.SourceStaticFallback
		}
		out := c.state.copy()
		c.mu.Unlock()
		observ.IncCounter("refresh_total", map[string]string{"outcome": "fallback"})
		observ.Log("refresh_failed", map[string]any{"error": err.Error(), "served": out.Source})
		return out
	}

	rounded := prices.Rounded()
	change := make(map[metals.Metal]Change, len(rounded))
	for m, v := range rounded {
		prev := c.state.Prices[m]
		if prev > 0 && c.state.Source != metals.SourceStaticFallback {
			delta := metals.RoundCents(v - prev)
			change[m] = Change{Amount: delta, Percent: delta / prev * 100}
		} else {
			change[m] = Change{}
		}
	}

	c.state = State{
		Prices:      rounded,
		LastUpdated: &now,
		Source:      metals.SourceLive,
		Change:      change,
	}
	if c.isClosed(now) {
		c.friday = &fridayClose{prices: rounded.Copy(), taken: now}
		observ.Log("friday_close_captured", map[string]any{"reason": "refresh_while_closed"})
	}
	out := c.state.copy()
	c.mu.Unlock()

	observ.IncCounter("refresh_total", map[string]string{"outcome": "live"})
	c.recordSnapshots(rounded, now)
	c.maybeCalibrate(rounded)
	return out
}

// recordSnapshots enqueues one snapshot per metal, best-effort.
func (c *Cache) recordSnapshots(prices metals.Prices, at time.Time) {
	if c.recorder == nil {
		return
	}
	for m, v := range prices {
		c.recorder.Enqueue(metals.Snapshot{
			Timestamp: at.UTC(),
			Metal:     m,
			Price:     v,
			Source:    metals.SourceLive,
		})
	}
}

// maybeCalibrate runs the daily calibration in the background when
// due. Errors are logged and swallowed; the refresh that triggered the
// run has already returned by the time calibration fails.
func (c *Cache) maybeCalibrate(spots metals.Prices) {
	if c.calibrator == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if !c.calibrator.NeedsCalibration(ctx) {
			return
		}
		if err := c.calibrator.Calibrate(ctx, spots.Copy()); err != nil {
			observ.Log("calibration_failed", map[string]any{"error": err.Error()})
		}
	}()
}

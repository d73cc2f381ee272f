// Package resolver answers historical price queries by walking an
// ordered list of tiers until one produces a usable value. The tier
// that answered is recorded on the result, so a client can always tell
// where a number came from.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/metalfolio/price-engine/internal/calibration"
	"github.com/metalfolio/price-engine/internal/etf"
	"github.com/metalfolio/price-engine/internal/histcache"
	"github.com/metalfolio/price-engine/internal/livecache"
	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
	"github.com/metalfolio/price-engine/internal/pricelog"
	"github.com/metalfolio/price-engine/internal/sources"
)

// Source tags on resolved results.
const (
	SourceCurrentSpot  = "current-spot"
	SourcePriceLog     = "price_log"
	SourceETFDerived   = "etf_derived"
	SourceLiveAPI      = "live_api_historical"
	SourceMacroMonthly = "macro_monthly"
	SourceNone         = "none"
)

// Granularity labels.
const (
	GranMonthly  = "monthly"
	GranDaily    = "daily"
	GranMinute   = "minute"
	GranIntraday = "estimated_intraday"
	GranNone     = "none"
)

// Snapshots this close to the requested instant count as that instant.
const intradayWindow = 5 * time.Minute

// Query is one historical lookup.
type Query struct {
	Day     time.Time // UTC midnight
	Hour    int
	Minute  int
	HasTime bool
	Metals  []metals.Metal // empty means all four
}

func (q Query) metals() []metals.Metal {
	if len(q.Metals) == 0 {
		return metals.All()
	}
	return q.Metals
}

func (q Query) instant() time.Time {
	return q.Day.Add(time.Duration(q.Hour)*time.Hour + time.Duration(q.Minute)*time.Minute)
}

// Range is a converted daily low/high hint.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Result is a resolved query. OK=false means every tier missed; the
// caller must surface the miss explicitly rather than substitute the
// current spot price.
type Result struct {
	OK          bool
	Prices      metals.Prices
	Source      string
	Granularity string
	DailyRange  map[metals.Metal]Range
	Note        string
}

// Resolver walks the tier list. It owns none of its inputs.
type Resolver struct {
	spot  *livecache.Cache
	log   pricelog.Store
	bars  sources.BarSource
	cal   *calibration.Engine
	hist  sources.HistoricalSource
	macro *sources.MacroTable
	cache histcache.Cache
	now   func() time.Time

	tiers []tier
}

type tier struct {
	name string
	run  func(ctx context.Context, q Query) (Result, bool)
}

// New wires the resolver. Any of bars, hist may be nil, in which case
// their tiers always miss; log, macro and cache are required.
func New(spot *livecache.Cache, log pricelog.Store, bars sources.BarSource,
	cal *calibration.Engine, hist sources.HistoricalSource,
	macro *sources.MacroTable, cache histcache.Cache) *Resolver {

	r := &Resolver{
		spot: spot, log: log, bars: bars, cal: cal,
		hist: hist, macro: macro, cache: cache,
		now: time.Now,
	}
	// Tier order is the fallback order; reordering this slice is the
	// whole change.
	r.tiers = []tier{
		{"price_log", r.priceLogTier},
		{"etf_derived", r.etfTier},
		{"live_api_historical", r.liveAPITier},
		{"macro_fallback", r.macroFallbackTier},
	}
	return r
}

// Resolve answers one query.
func (r *Resolver) Resolve(ctx context.Context, q Query) Result {
	today := metals.Day(r.now())

	// Today and future dates are current-spot by definition.
	if !q.Day.Before(today) {
		return r.currentSpot(ctx, q)
	}

	// The pre-ETF era has exactly one source of truth.
	if q.Day.Before(sources.ETFLaunch) {
		res, ok := r.macroTier(ctx, q)
		if !ok {
			return unavailable(fmt.Sprintf("no data loaded for %s", q.Day.Format("2006-01-02")))
		}
		observ.IncCounter("resolver_tier_hits_total", map[string]string{"tier": "macro_monthly"})
		return res
	}

	for _, t := range r.tiers {
		if res, ok := t.run(ctx, q); ok {
			observ.IncCounter("resolver_tier_hits_total", map[string]string{"tier": t.name})
			return res
		}
	}
	observ.IncCounter("resolver_tier_hits_total", map[string]string{"tier": "none"})
	return unavailable(fmt.Sprintf("no source could price %s", q.Day.Format("2006-01-02")))
}

func unavailable(note string) Result {
	return Result{OK: false, Source: SourceNone, Granularity: GranNone, Note: note}
}

func (r *Resolver) currentSpot(ctx context.Context, q Query) Result {
	state := r.spot.Get(ctx)
	prices := make(metals.Prices, len(q.metals()))
	for _, m := range q.metals() {
		prices[m] = state.Prices[m]
	}
	return Result{
		OK:          true,
		Prices:      prices,
		Source:      SourceCurrentSpot,
		Granularity: GranMinute,
	}
}

// priceLogTier serves queries from our own snapshot history. All
// requested metals must be present; a partial day falls through so a
// better tier can answer uniformly.
func (r *Resolver) priceLogTier(ctx context.Context, q Query) (Result, bool) {
	prices := make(metals.Prices, len(q.metals()))
	for _, m := range q.metals() {
		var snap metals.Snapshot
		var err error
		if q.HasTime {
			snap, err = r.log.Closest(ctx, m, q.instant(), intradayWindow)
		} else {
			snap, err = r.log.ClosestOnDay(ctx, m, q.Day)
		}
		if err != nil {
			return Result{}, false
		}
		prices[m] = metals.RoundCents(snap.Price)
	}
	gran := GranDaily
	if q.HasTime {
		gran = GranMinute
	}
	return Result{OK: true, Prices: prices, Source: SourcePriceLog, Granularity: gran}, true
}

// etfTier estimates spot from the proxy ETF's daily bar and the
// calibration ratio for the date.
func (r *Resolver) etfTier(ctx context.Context, q Query) (Result, bool) {
	if r.bars == nil {
		return Result{}, false
	}
	ratios := r.cal.RatiosForDate(ctx, q.Day)
	prices := make(metals.Prices, len(q.metals()))
	ranges := make(map[metals.Metal]Range, len(q.metals()))
	for _, m := range q.metals() {
		bar, err := r.bars.DailyBar(ctx, m.ETFSymbol(), q.Day)
		if err != nil {
			return Result{}, false
		}
		value := bar.Close
		if q.HasTime {
			value = etf.BlendIntraday(bar, q.Hour)
		}
		prices[m] = etf.ToSpot(value, ratios[m])
		low, high := etf.DailyRange(bar, ratios[m])
		ranges[m] = Range{Low: low, High: high}
	}
	gran := GranDaily
	if q.HasTime {
		gran = GranIntraday
	}
	return Result{
		OK: true, Prices: prices, Source: SourceETFDerived,
		Granularity: gran, DailyRange: ranges,
	}, true
}

// liveAPITier asks the secondary historical source, consulting and
// feeding the indefinite lookup cache. Past prices are final, so
// cached entries never expire.
func (r *Resolver) liveAPITier(ctx context.Context, q Query) (Result, bool) {
	if r.hist == nil {
		return Result{}, false
	}
	prices := make(metals.Prices, len(q.metals()))
	for _, m := range q.metals() {
		if e, ok := r.cache.Get(ctx, m, q.Day); ok {
			prices[m] = e.Price
			continue
		}
		price, err := r.hist.PriceOn(ctx, m, q.Day)
		if err != nil {
			return Result{}, false
		}
		prices[m] = price
		r.cache.Put(ctx, m, q.Day, histcache.Entry{Price: price, Source: SourceLiveAPI})
	}
	return Result{OK: true, Prices: prices, Source: SourceLiveAPI, Granularity: GranDaily}, true
}

func (r *Resolver) macroTier(ctx context.Context, q Query) (Result, bool) {
	table, err := r.macro.Lookup(q.Day)
	if err != nil {
		return Result{}, false
	}
	prices := make(metals.Prices)
	for _, m := range q.metals() {
		if v, ok := table[m]; ok {
			prices[m] = metals.RoundCents(v)
		}
	}
	if len(prices) == 0 {
		return Result{}, false
	}
	return Result{OK: true, Prices: prices, Source: SourceMacroMonthly, Granularity: GranMonthly}, true
}

// macroFallbackTier reuses the monthly table for post-ETF dates when
// every better tier failed, annotated so clients can see the
// degradation.
func (r *Resolver) macroFallbackTier(ctx context.Context, q Query) (Result, bool) {
	res, ok := r.macroTier(ctx, q)
	if !ok {
		return Result{}, false
	}
	res.Note = "degraded result: monthly average, better sources unavailable"
	return res, true
}

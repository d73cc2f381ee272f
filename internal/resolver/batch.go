package resolver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metalfolio/price-engine/internal/histcache"
	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/sources"
)

// MaxBatchDates bounds one batch request.
const MaxBatchDates = 100

// batchConcurrency bounds simultaneous per-date resolutions so a full
// batch cannot stampede the bar source.
const batchConcurrency = 8

// BatchEntry is the per-date payload of a batch response. Batch
// clients chart gold and silver only.
type BatchEntry struct {
	Success bool    `json:"success"`
	Gold    float64 `json:"gold,omitempty"`
	Silver  float64 `json:"silver,omitempty"`
	Source  string  `json:"source,omitempty"`
}

// ResolveBatch prices up to MaxBatchDates calendar days. To keep the
// request bounded it walks a restricted tier order per date: current
// spot for today and later, then the lookup cache, the price log, and
// the ETF close without intraday blending. Slow tiers (the secondary
// historical API) are skipped entirely.
func (r *Resolver) ResolveBatch(ctx context.Context, days []time.Time) map[string]BatchEntry {
	out := make(map[string]BatchEntry, len(days))
	var mu sync.Mutex

	today := metals.Day(r.now())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for _, day := range days {
		day := metals.Day(day)
		g.Go(func() error {
			entry := r.resolveBatchDay(ctx, day, today)
			mu.Lock()
			out[day.Format("2006-01-02")] = entry
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) resolveBatchDay(ctx context.Context, day, today time.Time) BatchEntry {
	if !day.Before(today) {
		state := r.spot.Get(ctx)
		return BatchEntry{
			Success: true,
			Gold:    state.Prices[metals.Gold],
			Silver:  state.Prices[metals.Silver],
			Source:  SourceCurrentSpot,
		}
	}

	if gold, ok := r.cache.Get(ctx, metals.Gold, day); ok {
		if silver, ok := r.cache.Get(ctx, metals.Silver, day); ok {
			return BatchEntry{Success: true, Gold: gold.Price, Silver: silver.Price, Source: gold.Source}
		}
	}

	q := Query{Day: day, Metals: []metals.Metal{metals.Gold, metals.Silver}}
	if res, ok := r.priceLogTier(ctx, q); ok {
		r.cacheBatch(ctx, day, res)
		return toBatchEntry(res)
	}
	if day.Before(sources.ETFLaunch) {
		if res, ok := r.macroTier(ctx, q); ok {
			return toBatchEntry(res)
		}
		return BatchEntry{Success: false}
	}
	if res, ok := r.etfTier(ctx, q); ok {
		r.cacheBatch(ctx, day, res)
		return toBatchEntry(res)
	}
	return BatchEntry{Success: false}
}

func (r *Resolver) cacheBatch(ctx context.Context, day time.Time, res Result) {
	for m, p := range res.Prices {
		r.cache.Put(ctx, m, day, histcache.Entry{Price: p, Source: res.Source})
	}
}

func toBatchEntry(res Result) BatchEntry {
	return BatchEntry{
		Success: true,
		Gold:    res.Prices[metals.Gold],
		Silver:  res.Prices[metals.Silver],
		Source:  res.Source,
	}
}

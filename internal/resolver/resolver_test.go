package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/metalfolio/price-engine/internal/calibration"
	"github.com/metalfolio/price-engine/internal/etf"
	"github.com/metalfolio/price-engine/internal/histcache"
	"github.com/metalfolio/price-engine/internal/livecache"
	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/pricelog"
	"github.com/metalfolio/price-engine/internal/sources"
)

var testNow = time.Date(2024, 11, 14, 15, 0, 0, 0, time.UTC)

type stubLive struct{ prices metals.Prices }

func (s *stubLive) Current(context.Context) (metals.Prices, error) {
	return s.prices.Copy(), nil
}

type stubBars struct {
	bars  map[string]etf.Bar
	calls int
}

func (s *stubBars) DailyBar(_ context.Context, symbol string, _ time.Time) (etf.Bar, error) {
	s.calls++
	if b, ok := s.bars[symbol]; ok {
		return b, nil
	}
	return etf.Bar{}, sources.NewNotFoundError("etf-bars", "no bar")
}

func (s *stubBars) LatestClose(_ context.Context, symbol string) (float64, error) {
	if b, ok := s.bars[symbol]; ok {
		return b.Close, nil
	}
	return 0, sources.NewNotFoundError("etf-bars", "no bar")
}

type stubHist struct {
	prices map[metals.Metal]float64
	calls  int
}

func (s *stubHist) PriceOn(_ context.Context, m metals.Metal, _ time.Time) (float64, error) {
	s.calls++
	if p, ok := s.prices[m]; ok {
		return p, nil
	}
	return 0, sources.NewNotFoundError("historical-api", "no price")
}

type fixture struct {
	r    *Resolver
	log  *pricelog.MemoryStore
	bars *stubBars
	hist *stubHist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	spot := livecache.New(
		&stubLive{prices: metals.Prices{
			metals.Gold: 2650.00, metals.Silver: 31.00,
			metals.Platinum: 980.00, metals.Palladium: 1020.00,
		}},
		livecache.WithClock(func() time.Time { return testNow }, func(time.Time) bool { return false }),
	)
	spot.Refresh(context.Background())

	log := pricelog.NewMemoryStore()
	bars := &stubBars{bars: map[string]etf.Bar{}}
	hist := &stubHist{prices: map[metals.Metal]float64{}}
	cal := calibration.NewEngine(calibration.NewMemoryStore(), bars)

	r := New(spot, log, bars, cal, hist, sources.NewMacroTable(), histcache.NewMemory())
	r.now = func() time.Time { return testNow }
	return &fixture{r: r, log: log, bars: bars, hist: hist}
}

func allBars(bar etf.Bar) map[string]etf.Bar {
	return map[string]etf.Bar{"GLD": bar, "SLV": bar, "PPLT": bar, "PALL": bar}
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveTodayUsesCurrentSpot(t *testing.T) {
	f := newFixture(t)
	// Fill every other tier to prove none of them win for today.
	f.bars.bars = allBars(etf.Bar{Open: 1, High: 1, Low: 1, Close: 1})
	f.hist.prices = map[metals.Metal]float64{metals.Gold: 1}

	res := f.r.Resolve(context.Background(), Query{Day: metals.Day(testNow)})
	if !res.OK {
		t.Fatal("expected hit")
	}
	if res.Source != SourceCurrentSpot {
		t.Errorf("source = %q, want current-spot", res.Source)
	}
	if res.Prices[metals.Gold] != 2650.00 {
		t.Errorf("gold = %v, want current spot 2650.00", res.Prices[metals.Gold])
	}
}

func TestResolveFutureDateUsesCurrentSpot(t *testing.T) {
	f := newFixture(t)
	res := f.r.Resolve(context.Background(), Query{Day: metals.Day(testNow).AddDate(0, 0, 30)})
	if !res.OK || res.Source != SourceCurrentSpot {
		t.Errorf("future date: OK=%v source=%q, want current-spot hit", res.OK, res.Source)
	}
}

func TestResolvePreETFEraFromMacroTable(t *testing.T) {
	f := newFixture(t)
	res := f.r.Resolve(context.Background(), Query{Day: day("2004-07-19")})
	if !res.OK {
		t.Fatal("expected macro hit")
	}
	if res.Source != SourceMacroMonthly || res.Granularity != GranMonthly {
		t.Errorf("got source=%q granularity=%q", res.Source, res.Granularity)
	}
	if res.Prices[metals.Gold] <= 0 {
		t.Error("expected positive gold price")
	}
	if _, ok := res.Prices[metals.Platinum]; ok {
		t.Error("macro tier should not invent platinum prices")
	}
}

func TestResolvePreETFEraMissingIsExplicit(t *testing.T) {
	f := newFixture(t)
	// Make every networked tier able to answer; the pre-ETF branch
	// must still refuse rather than fall through to them.
	f.hist.prices = map[metals.Metal]float64{metals.Gold: 400}

	res := f.r.Resolve(context.Background(), Query{Day: day("1971-08-15")})
	if res.OK {
		t.Fatal("expected explicit miss for unloaded pre-ETF date")
	}
	if res.Granularity != GranNone || res.Source != SourceNone {
		t.Errorf("got source=%q granularity=%q, want explicit none", res.Source, res.Granularity)
	}
	if res.Note == "" {
		t.Error("miss should carry an explanatory note")
	}
	if f.hist.calls != 0 {
		t.Error("pre-ETF miss must not consult the historical API")
	}
}

func TestResolvePriceLogTierWins(t *testing.T) {
	f := newFixture(t)
	d := day("2024-06-03")
	for _, m := range metals.All() {
		_ = f.log.Append(context.Background(), metals.Snapshot{
			Timestamp: d.Add(14 * time.Hour), Metal: m, Price: 2300.00, Source: metals.SourceLive,
		})
	}
	f.bars.bars = allBars(etf.Bar{Open: 200, High: 210, Low: 195, Close: 205})

	res := f.r.Resolve(context.Background(), Query{Day: d})
	if res.Source != SourcePriceLog {
		t.Fatalf("source = %q, want price_log", res.Source)
	}
	if res.Granularity != GranDaily {
		t.Errorf("granularity = %q, want daily", res.Granularity)
	}
	if f.bars.calls != 0 {
		t.Error("winning tier should stop the walk before the bar source")
	}
}

func TestResolveIntradayWindow(t *testing.T) {
	f := newFixture(t)
	d := day("2024-06-03")
	for _, m := range metals.All() {
		_ = f.log.Append(context.Background(), metals.Snapshot{
			Timestamp: d.Add(14*time.Hour + 2*time.Minute), Metal: m, Price: 2300.00, Source: metals.SourceLive,
		})
	}

	res := f.r.Resolve(context.Background(), Query{Day: d, Hour: 14, Minute: 0, HasTime: true})
	if res.Source != SourcePriceLog || res.Granularity != GranMinute {
		t.Errorf("got source=%q granularity=%q, want price_log/minute", res.Source, res.Granularity)
	}

	// Ten minutes away is outside the 5-minute window; with no other
	// tier available the result is an explicit miss.
	res = f.r.Resolve(context.Background(), Query{Day: d, Hour: 16, Minute: 30, HasTime: true})
	if res.OK {
		t.Errorf("expected miss outside window, got source=%q", res.Source)
	}
}

func TestResolveETFTier(t *testing.T) {
	f := newFixture(t)
	f.bars.bars = allBars(etf.Bar{Open: 200, High: 210, Low: 195, Close: 205})

	res := f.r.Resolve(context.Background(), Query{Day: day("2024-06-03"), Metals: []metals.Metal{metals.Gold}})
	if res.Source != SourceETFDerived {
		t.Fatalf("source = %q, want etf_derived", res.Source)
	}
	want := etf.ToSpot(205, calibration.DefaultRatios()[metals.Gold])
	if res.Prices[metals.Gold] != want {
		t.Errorf("gold = %v, want %v", res.Prices[metals.Gold], want)
	}
	rng, ok := res.DailyRange[metals.Gold]
	if !ok {
		t.Fatal("etf tier should attach a daily range")
	}
	if rng.Low >= rng.High {
		t.Errorf("range low %v should be below high %v", rng.Low, rng.High)
	}
}

func TestResolveETFTierIntradayBlends(t *testing.T) {
	f := newFixture(t)
	bar := etf.Bar{Open: 200, High: 210, Low: 195, Close: 205}
	f.bars.bars = allBars(bar)

	res := f.r.Resolve(context.Background(), Query{
		Day: day("2024-06-03"), Hour: 9, Minute: 15, HasTime: true,
		Metals: []metals.Metal{metals.Gold},
	})
	if res.Granularity != GranIntraday {
		t.Errorf("granularity = %q, want estimated_intraday", res.Granularity)
	}
	want := etf.ToSpot(etf.BlendIntraday(bar, 9), calibration.DefaultRatios()[metals.Gold])
	if res.Prices[metals.Gold] != want {
		t.Errorf("gold = %v, want blended %v", res.Prices[metals.Gold], want)
	}
}

func TestResolveLiveAPITierCachesForever(t *testing.T) {
	f := newFixture(t)
	f.hist.prices = map[metals.Metal]float64{
		metals.Gold: 1900.00, metals.Silver: 24.00,
		metals.Platinum: 950.00, metals.Palladium: 1400.00,
	}
	q := Query{Day: day("2022-03-04")}

	res := f.r.Resolve(context.Background(), q)
	if res.Source != SourceLiveAPI {
		t.Fatalf("source = %q, want live_api_historical", res.Source)
	}
	callsAfterFirst := f.hist.calls

	res = f.r.Resolve(context.Background(), q)
	if res.Source != SourceLiveAPI || res.Prices[metals.Gold] != 1900.00 {
		t.Fatalf("cached resolve broken: %+v", res)
	}
	if f.hist.calls != callsAfterFirst {
		t.Errorf("second resolve hit the upstream again: %d -> %d calls", callsAfterFirst, f.hist.calls)
	}
}

func TestResolveRoundsToCents(t *testing.T) {
	f := newFixture(t)
	f.hist.prices = map[metals.Metal]float64{
		metals.Gold: 1900.129, metals.Silver: 24.001,
		metals.Platinum: 950.0, metals.Palladium: 1400.0,
	}
	res := f.r.Resolve(context.Background(), Query{Day: day("2022-03-04")})
	if res.Prices[metals.Gold] != 1900.13 || res.Prices[metals.Silver] != 24.00 {
		t.Errorf("prices not rounded: %+v", res.Prices)
	}
}

func TestResolveNothingAvailableIsExplicitMiss(t *testing.T) {
	f := newFixture(t)
	// A post-ETF date outside the macro table with every source empty.
	res := f.r.Resolve(context.Background(), Query{Day: day("2015-06-15")})
	if res.OK {
		t.Fatalf("expected miss, got hit from %q", res.Source)
	}
	if res.Source == SourceCurrentSpot {
		t.Error("a miss must never silently become current spot")
	}
}

func TestResolveBatch(t *testing.T) {
	f := newFixture(t)
	d := day("2024-06-03")
	for _, m := range metals.All() {
		_ = f.log.Append(context.Background(), metals.Snapshot{
			Timestamp: d.Add(12 * time.Hour), Metal: m, Price: 2300.00, Source: metals.SourceLive,
		})
	}

	days := []time.Time{d, metals.Day(testNow), day("2015-06-15")}
	got := f.r.ResolveBatch(context.Background(), days)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if e := got["2024-06-03"]; !e.Success || e.Source != SourcePriceLog || e.Gold != 2300.00 {
		t.Errorf("price-log day: %+v", e)
	}
	if e := got["2024-11-14"]; !e.Success || e.Source != SourceCurrentSpot {
		t.Errorf("today: %+v", e)
	}
	if e := got["2015-06-15"]; e.Success {
		t.Errorf("unresolvable day should fail explicitly: %+v", e)
	}
}

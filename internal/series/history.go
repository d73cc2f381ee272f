package series

import (
	"context"
	"fmt"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/pricelog"
	"github.com/metalfolio/price-engine/internal/sources"
)

// MaxChartPoints caps how many points one chart payload may carry.
const MaxChartPoints = 200

// Named chart ranges and their spans. ALL reaches back to the start of
// the macro table.
var rangeSpans = map[string]func(now time.Time) time.Time{
	"1M": func(now time.Time) time.Time { return now.AddDate(0, -1, 0) },
	"3M": func(now time.Time) time.Time { return now.AddDate(0, -3, 0) },
	"6M": func(now time.Time) time.Time { return now.AddDate(0, -6, 0) },
	"1Y": func(now time.Time) time.Time { return now.AddDate(-1, 0, 0) },
	"5Y": func(now time.Time) time.Time { return now.AddDate(-5, 0, 0) },
	"ALL": func(now time.Time) time.Time {
		return time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)
	},
}

// ParseRange validates a chart range name and returns its start.
func ParseRange(name string, now time.Time) (time.Time, error) {
	span, ok := rangeSpans[name]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid range %q", name)
	}
	return metals.Day(span(now)), nil
}

// History assembles chart series from the price log, padding the
// pre-log era from the macro monthly table.
type History struct {
	log   pricelog.Store
	macro *sources.MacroTable
	now   func() time.Time
}

func NewHistory(log pricelog.Store, macro *sources.MacroTable) *History {
	return &History{log: log, macro: macro, now: time.Now}
}

// Build returns one point per day in [from, today], downsampled to
// maxPoints, with per-metal gaps filled. totalPoints reports the size
// before sampling.
func (h *History) Build(ctx context.Context, from time.Time, maxPoints int) (points []Point, totalPoints int, err error) {
	if maxPoints <= 0 || maxPoints > MaxChartPoints {
		maxPoints = MaxChartPoints
	}
	today := metals.Day(h.now())
	from = metals.Day(from)

	byDay := make(map[string]metals.Prices)
	for _, m := range metals.All() {
		snaps, err := h.log.Range(ctx, m, from, today.AddDate(0, 0, 1))
		if err != nil {
			return nil, 0, fmt.Errorf("load %s range: %w", m, err)
		}
		// Last snapshot of each day wins.
		for _, s := range snaps {
			k := s.Timestamp.Format("2006-01-02")
			if byDay[k] == nil {
				byDay[k] = make(metals.Prices, 4)
			}
			byDay[k][m] = s.Price
		}
	}

	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		k := d.Format("2006-01-02")
		values := byDay[k]
		if values == nil {
			values = make(metals.Prices, 4)
			if macro, err := h.macro.Lookup(d); err == nil {
				for m, v := range macro {
					values[m] = metals.RoundCents(v)
				}
			}
		}
		points = append(points, Point{Date: k, Values: values})
	}
	totalPoints = len(points)

	for _, m := range metals.All() {
		FillGaps(points, m)
	}
	return Sample(points, maxPoints), totalPoints, nil
}

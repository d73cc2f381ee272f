package series

import (
	"context"
	"testing"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/pricelog"
	"github.com/metalfolio/price-engine/internal/sources"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	from, err := ParseRange("1M", now)
	if err != nil {
		t.Fatal(err)
	}
	if got := from.Format("2006-01-02"); got != "2024-05-15" {
		t.Errorf("1M from = %s, want 2024-05-15", got)
	}

	from, err = ParseRange("ALL", now)
	if err != nil {
		t.Fatal(err)
	}
	if from.Year() != 1995 {
		t.Errorf("ALL should reach back to the macro table start, got %s", from)
	}

	if _, err := ParseRange("2W", now); err == nil {
		t.Error("unknown range must error")
	}
}

func TestBuildFillsAndSamples(t *testing.T) {
	log := pricelog.NewMemoryStore()
	h := NewHistory(log, sources.NewMacroTable())
	h.now = func() time.Time { return time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC) }

	// Snapshots on three scattered days of the month; the rest must be
	// gap-filled, not zero.
	for _, d := range []int{3, 14, 27} {
		ts := time.Date(2024, 6, d, 15, 0, 0, 0, time.UTC)
		for _, m := range metals.All() {
			if err := log.Append(context.Background(), metals.Snapshot{
				Timestamp: ts, Metal: m, Price: 2000 + float64(d), Source: metals.SourceLive,
			}); err != nil {
				t.Fatal(err)
			}
		}
	}

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	points, total, err := h.Build(context.Background(), from, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 30 {
		t.Errorf("totalPoints = %d, want 30 (one per day)", total)
	}
	if len(points) != 10 {
		t.Errorf("sampled to %d points, want 10", len(points))
	}
	if points[0].Date != "2024-06-01" || points[len(points)-1].Date != "2024-06-30" {
		t.Errorf("endpoints = %s..%s, want 2024-06-01..2024-06-30",
			points[0].Date, points[len(points)-1].Date)
	}
	for _, p := range points {
		if p.Values[metals.Gold] == 0 {
			t.Errorf("gold zero on %s after gap fill", p.Date)
		}
	}
	// Leading days backfill from the first snapshot.
	if points[0].Values[metals.Gold] != 2003 {
		t.Errorf("first point gold = %v, want backfilled 2003", points[0].Values[metals.Gold])
	}
}

func TestBuildPadsPreLogEraFromMacroTable(t *testing.T) {
	h := NewHistory(pricelog.NewMemoryStore(), sources.NewMacroTable())
	h.now = func() time.Time { return time.Date(2005, 1, 31, 12, 0, 0, 0, time.UTC) }

	from := time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	points, total, err := h.Build(context.Background(), from, MaxChartPoints)
	if err != nil {
		t.Fatal(err)
	}
	if total != 31 {
		t.Fatalf("totalPoints = %d, want 31", total)
	}
	for _, p := range points {
		if p.Values[metals.Gold] <= 0 || p.Values[metals.Silver] <= 0 {
			t.Errorf("macro padding missing on %s: %v", p.Date, p.Values)
		}
	}
}

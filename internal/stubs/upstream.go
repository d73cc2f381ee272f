// Package stubs provides a fake upstream implementing all three
// provider APIs on one port, so the engine can be run end to end with
// no API keys and no network.
package stubs

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// Upstream serves deterministic prices: each metal drifts sinusoidally
// around a base so repeated requests look alive but replays are
// reproducible.
type Upstream struct {
	now func() time.Time
}

func NewUpstream() *Upstream {
	return &Upstream{now: time.Now}
}

var basePrices = map[string]float64{
	"gold":      2650.00,
	"silver":    31.00,
	"platinum":  980.00,
	"palladium": 1020.00,
}

var etfBases = map[string]float64{
	"GLD":  245.50,
	"SLV":  28.10,
	"PPLT": 90.20,
	"PALL": 93.70,
}

// priceAt drifts base by up to ±1.5% on a daily cycle, seeded by the
// instant so historical days get stable values.
func priceAt(base float64, at time.Time) float64 {
	phase := float64(at.Unix()%86400) / 86400 * 2 * math.Pi
	return base * (1 + 0.015*math.Sin(phase))
}

func (u *Upstream) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/spot/latest", u.spotLatest)
	mux.HandleFunc("/v1/bars/", u.bars)
	mux.HandleFunc("/v1/historical", u.historical)
	return mux
}

func (u *Upstream) spotLatest(w http.ResponseWriter, r *http.Request) {
	now := u.now()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"gold":      priceAt(basePrices["gold"], now),
		"silver":    priceAt(basePrices["silver"], now),
		"platinum":  priceAt(basePrices["platinum"], now),
		"palladium": priceAt(basePrices["palladium"], now),
	})
}

func (u *Upstream) bars(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/bars/")
	symbol := rest
	latest := false
	if s, ok := strings.CutSuffix(rest, "/latest"); ok {
		symbol, latest = s, true
	}
	base, ok := etfBases[symbol]
	if !ok {
		http.NotFound(w, r)
		return
	}

	day := u.now()
	if !latest {
		parsed, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "date must be YYYY-MM-DD"})
			return
		}
		// Weekends have no session.
		if wd := parsed.Weekday(); wd == time.Saturday || wd == time.Sunday {
			http.NotFound(w, r)
			return
		}
		day = parsed
	}

	px := priceAt(base, day)
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"date":   day.Format("2006-01-02"),
		"open":   px * 0.996,
		"high":   px * 1.008,
		"low":    px * 0.991,
		"close":  px,
	})
}

func (u *Upstream) historical(w http.ResponseWriter, r *http.Request) {
	metal := r.URL.Query().Get("metal")
	base, ok := basePrices[metal]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown metal " + metal})
		return
	}
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "date must be YYYY-MM-DD"})
		return
	}
	if day.After(u.now()) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metal": metal,
		"date":  day.Format("2006-01-02"),
		"price": priceAt(base, day),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("stub write error:", err)
	}
}

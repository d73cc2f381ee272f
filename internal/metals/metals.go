package metals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metal identifies one of the four tracked precious metals.
type Metal string

const (
	Gold      Metal = "gold"
	Silver    Metal = "silver"
	Platinum  Metal = "platinum"
	Palladium Metal = "palladium"
)

// All returns the metals in canonical order.
func All() []Metal {
	return []Metal{Gold, Silver, Platinum, Palladium}
}

// Parse normalizes a metal name from request input.
func Parse(s string) (Metal, bool) {
	switch Metal(strings.ToLower(strings.TrimSpace(s))) {
	case Gold:
		return Gold, true
	case Silver:
		return Silver, true
	case Platinum:
		return Platinum, true
	case Palladium:
		return Palladium, true
	}
	return "", false
}

// ETFSymbol returns the proxy ETF ticker used for calibration and
// etf-derived historical estimates.
func (m Metal) ETFSymbol() string {
	switch m {
	case Gold:
		return "GLD"
	case Silver:
		return "SLV"
	case Platinum:
		return "PPLT"
	case Palladium:
		return "PALL"
	}
	return ""
}

// Prices maps each metal to a USD price per troy ounce.
type Prices map[Metal]float64

// Copy returns an independent copy so cached state can be handed out
// without aliasing the cache's own map.
func (p Prices) Copy() Prices {
	out := make(Prices, len(p))
	for m, v := range p {
		out[m] = v
	}
	return out
}

// Rounded returns a copy with every price rounded to cents.
func (p Prices) Rounded() Prices {
	out := make(Prices, len(p))
	for m, v := range p {
		out[m] = RoundCents(v)
	}
	return out
}

// RoundCents rounds a price to 2 decimal places, half away from zero.
// Chosen over round-half-to-even so 2650.125 stores as 2650.13.
func RoundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Snapshot source labels.
const (
	SourceLive           = "live"
	SourceETFDerived     = "etf-derived"
	SourceMacroMonthly   = "macro-monthly"
	SourceCache          = "cache"
	SourceStaticFallback = "static-fallback"
)

// Snapshot is one immutable price observation. Appended to the price
// log on every successful live refresh and by historical backfill.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Metal     Metal     `json:"metal"`
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
}

// Day truncates an instant to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Package etf maps exchange-traded-fund share prices to implied spot
// prices using per-metal calibration ratios. Everything here is pure;
// ratio persistence lives in the calibration package.
package etf

import "github.com/metalfolio/price-engine/internal/metals"

// Bar is one daily OHLC bar for a proxy ETF.
type Bar struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// ToSpot converts an ETF share price to an implied spot price. The
// ratio is spot divided by ETF price, recalibrated daily.
func ToSpot(etfPrice, ratio float64) float64 {
	return metals.RoundCents(etfPrice * ratio)
}

// BlendIntraday estimates where within a daily bar the price sat at a
// given hour: mornings lean on the open, afternoons on the close, and
// mid-session uses the OHLC mean.
func BlendIntraday(bar Bar, hour int) float64 {
	switch {
	case hour < 10:
		return 0.7*bar.Open + 0.3*bar.Close
	case hour >= 14:
		return 0.3*bar.Open + 0.7*bar.Close
	default:
		return (bar.Open + bar.High + bar.Low + bar.Close) / 4
	}
}

// DailyRange converts a bar's low and high to spot terms.
func DailyRange(bar Bar, ratio float64) (low, high float64) {
	return ToSpot(bar.Low, ratio), ToSpot(bar.High, ratio)
}

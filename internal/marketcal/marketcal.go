// Package marketcal answers whether the precious-metals market is
// currently closed. Spot metals trade nearly around the clock during
// the week; the gap that matters for the cache freeze is the weekend
// window between the Friday close and the Sunday evening reopen.
package marketcal

import "time"

// New York hours bound the trading week: close Friday 17:00 ET,
// reopen Sunday 18:00 ET.
const (
	fridayCloseHour  = 17
	sundayReopenHour = 18
)

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fall back to a fixed offset; only affects the freeze window
		// boundary by the DST hour.
		return time.FixedZone("ET", -5*3600)
	}
	return loc
}

// IsClosed reports whether the market is closed at the given instant.
func IsClosed(now time.Time) bool {
	et := now.In(newYork)
	switch et.Weekday() {
	case time.Saturday:
		return true
	case time.Friday:
		return et.Hour() >= fridayCloseHour
	case time.Sunday:
		return et.Hour() < sundayReopenHour
	default:
		return false
	}
}

// Package series shapes resolved price ranges into chart payloads:
// bounded-size downsampling and gap filling for metals the older
// sources do not carry.
package series

import (
	"math"

	"github.com/metalfolio/price-engine/internal/metals"
)

// Point is one charted day.
type Point struct {
	Date   string        `json:"date"` // YYYY-MM-DD
	Values metals.Prices `json:"-"`
}

// Sample reduces points to at most maxPoints, keeping the first and
// last point and spacing the rest evenly across the input.
func Sample(points []Point, maxPoints int) []Point {
	n := len(points)
	if maxPoints <= 0 || n <= maxPoints {
		return points
	}
	if maxPoints == 1 {
		return points[:1]
	}

	step := float64(n-1) / float64(maxPoints-1)
	out := make([]Point, 0, maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx > n-1 {
			idx = n - 1
		}
		out = append(out, points[idx])
	}
	return out
}

// FillGaps replaces zero values for one metal by propagation: forward
// from the most recent non-zero value, then backward across any
// leading zeros from the earliest non-zero value. After both passes no
// zero remains between two non-zero values.
func FillGaps(points []Point, metal metals.Metal) {
	var last float64
	for i := range points {
		if v := points[i].Values[metal]; v != 0 {
			last = v
		} else if last != 0 {
			points[i].Values[metal] = last
		}
	}

	var first float64
	for _, p := range points {
		if v := p.Values[metal]; v != 0 {
			first = v
			break
		}
	}
	if first == 0 {
		return
	}
	for i := range points {
		if points[i].Values[metal] != 0 {
			break
		}
		points[i].Values[metal] = first
	}
}

package etf

import "testing"

func TestToSpot(t *testing.T) {
	tests := []struct {
		name     string
		etfPrice float64
		ratio    float64
		want     float64
	}{
		{"gold proxy", 245.50, 10.8, 2651.40},
		{"silver proxy", 28.10, 1.107, 31.11},
		{"ratio of one", 999.99, 1.0, 999.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToSpot(tt.etfPrice, tt.ratio); got != tt.want {
				t.Errorf("ToSpot(%v, %v) = %v, want %v", tt.etfPrice, tt.ratio, got, tt.want)
			}
		})
	}
}

func TestBlendIntraday(t *testing.T) {
	bar := Bar{Open: 100, High: 110, Low: 90, Close: 104}

	tests := []struct {
		name string
		hour int
		want float64
	}{
		{"early session leans open", 9, 0.7*100 + 0.3*104},
		{"late session leans close", 14, 0.3*100 + 0.7*104},
		{"after hours leans close", 18, 0.3*100 + 0.7*104},
		{"mid session uses ohlc mean", 12, (100.0 + 110 + 90 + 104) / 4},
		{"boundary at ten is mid session", 10, (100.0 + 110 + 90 + 104) / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BlendIntraday(bar, tt.hour); got != tt.want {
				t.Errorf("BlendIntraday(hour=%d) = %v, want %v", tt.hour, got, tt.want)
			}
		})
	}
}

func TestDailyRange(t *testing.T) {
	bar := Bar{Open: 100, High: 110, Low: 90, Close: 104}
	low, high := DailyRange(bar, 10.77)
	if low != 969.30 {
		t.Errorf("low = %v, want 969.30", low)
	}
	if high != 1184.70 {
		t.Errorf("high = %v, want 1184.70", high)
	}
	if low >= high {
		t.Errorf("low %v should be below high %v", low, high)
	}
}

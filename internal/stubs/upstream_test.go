package stubs

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/sources"
)

// The stub only earns its keep if the real clients can talk to it.
func TestRealClientsAgainstStub(t *testing.T) {
	srv := httptest.NewServer(NewUpstream().Handler())
	defer srv.Close()

	t.Run("live", func(t *testing.T) {
		c, err := sources.NewLiveClient(sources.LiveClientConfig{
			BaseURL: srv.URL, APIKey: "stub", RateLimitPerMinute: 600,
		})
		if err != nil {
			t.Fatal(err)
		}
		prices, err := c.Current(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range metals.All() {
			if prices[m] <= 0 {
				t.Errorf("%s = %v, want positive", m, prices[m])
			}
		}
	})

	t.Run("bars", func(t *testing.T) {
		c, err := sources.NewBarClient(sources.BarClientConfig{BaseURL: srv.URL, APIKey: "stub"})
		if err != nil {
			t.Fatal(err)
		}
		weekday := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC) // a Friday
		bar, err := c.DailyBar(context.Background(), "GLD", weekday)
		if err != nil {
			t.Fatal(err)
		}
		if bar.Low >= bar.High || bar.Close <= 0 {
			t.Errorf("implausible bar: %+v", bar)
		}

		saturday := weekday.AddDate(0, 0, 1)
		if _, err := c.DailyBar(context.Background(), "GLD", saturday); !sources.IsNotFound(err) {
			t.Errorf("weekend bar err = %v, want not_found", err)
		}

		if _, err := c.LatestClose(context.Background(), "SLV"); err != nil {
			t.Errorf("latest close: %v", err)
		}
	})

	t.Run("historical", func(t *testing.T) {
		c, err := sources.NewHistoricalClient(sources.HistoricalClientConfig{BaseURL: srv.URL, APIKey: "stub"})
		if err != nil {
			t.Fatal(err)
		}
		price, err := c.PriceOn(context.Background(), metals.Gold, time.Date(2020, 3, 10, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatal(err)
		}
		if price <= 0 {
			t.Errorf("price = %v, want positive", price)
		}

		future := time.Now().AddDate(1, 0, 0)
		if _, err := c.PriceOn(context.Background(), metals.Gold, future); !sources.IsNotFound(err) {
			t.Errorf("future date err = %v, want not_found", err)
		}
	})
}

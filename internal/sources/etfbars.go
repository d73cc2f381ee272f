package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/metalfolio/price-engine/internal/etf"
)

// BarClientConfig configures the ETF daily-bar client.
type BarClientConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// BarClient fetches daily OHLC bars for the proxy ETFs.
type BarClient struct {
	http   *resty.Client
	health *HealthTracker
	apiKey string
}

type barResponse struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
}

func NewBarClient(cfg BarClientConfig) (*BarClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bar source base URL is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}
	return &BarClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		health: NewHealthTracker("etf-bars"),
		apiKey: cfg.APIKey,
	}, nil
}

// DailyBar implements BarSource.
func (c *BarClient) DailyBar(ctx context.Context, symbol string, day time.Time) (etf.Bar, error) {
	var out barResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetQueryParam("date", day.UTC().Format("2006-01-02")).
		SetResult(&out).
		Get("/v1/bars/" + symbol)
	if err != nil {
		c.health.RecordError(err)
		return etf.Bar{}, NewNetworkError("etf-bars", "fetch daily bar "+symbol, err)
	}
	if resp.StatusCode() == 404 {
		// No bar for that day, e.g. exchange holiday. The upstream is
		// fine, the data just does not exist.
		c.health.RecordSuccess()
		return etf.Bar{}, NewNotFoundError("etf-bars", fmt.Sprintf("no bar for %s on %s", symbol, day.Format("2006-01-02")))
	}
	if resp.IsError() {
		err := NewProviderError("etf-bars", fmt.Sprintf("status %d", resp.StatusCode()), nil)
		c.health.RecordError(err)
		return etf.Bar{}, err
	}
	if out.Close <= 0 || out.Open <= 0 {
		err := NewProviderError("etf-bars", fmt.Sprintf("bad bar for %s: %+v", symbol, out), nil)
		c.health.RecordError(err)
		return etf.Bar{}, err
	}
	c.health.RecordSuccess()
	return etf.Bar{Open: out.Open, High: out.High, Low: out.Low, Close: out.Close}, nil
}

// LatestClose implements BarSource. It asks for the most recent
// completed session rather than a specific date.
func (c *BarClient) LatestClose(ctx context.Context, symbol string) (float64, error) {
	var out barResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetResult(&out).
		Get("/v1/bars/" + symbol + "/latest")
	if err != nil {
		c.health.RecordError(err)
		return 0, NewNetworkError("etf-bars", "fetch latest close "+symbol, err)
	}
	if resp.IsError() {
		err := NewProviderError("etf-bars", fmt.Sprintf("status %d", resp.StatusCode()), nil)
		c.health.RecordError(err)
		return 0, err
	}
	if out.Close <= 0 {
		err := NewProviderError("etf-bars", "non-positive close for "+symbol, nil)
		c.health.RecordError(err)
		return 0, err
	}
	c.health.RecordSuccess()
	return out.Close, nil
}

func (c *BarClient) Health() HealthSnapshot { return c.health.Snapshot() }

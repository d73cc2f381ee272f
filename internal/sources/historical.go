package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/metalfolio/price-engine/internal/metals"
)

// HistoricalClientConfig configures the secondary historical source.
type HistoricalClientConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// HistoricalClient is the last networked resolver tier: a slower API
// that can answer per-metal prices for arbitrary past days. Results
// are cached indefinitely by the resolver since past prices are final.
type HistoricalClient struct {
	http   *resty.Client
	health *HealthTracker
	apiKey string
}

type historicalResponse struct {
	Metal string  `json:"metal"`
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

func NewHistoricalClient(cfg HistoricalClientConfig) (*HistoricalClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("historical source base URL is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}
	return &HistoricalClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		health: NewHealthTracker("historical-api"),
		apiKey: cfg.APIKey,
	}, nil
}

// PriceOn implements HistoricalSource.
func (c *HistoricalClient) PriceOn(ctx context.Context, metal metals.Metal, day time.Time) (float64, error) {
	var out historicalResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetQueryParams(map[string]string{
			"metal": string(metal),
			"date":  day.UTC().Format("2006-01-02"),
		}).
		SetResult(&out).
		Get("/v1/historical")
	if err != nil {
		c.health.RecordError(err)
		return 0, NewNetworkError("historical-api", "fetch historical price", err)
	}
	if resp.StatusCode() == 404 {
		c.health.RecordSuccess()
		return 0, NewNotFoundError("historical-api", fmt.Sprintf("no %s price for %s", metal, day.Format("2006-01-02")))
	}
	if resp.IsError() {
		err := NewProviderError("historical-api", fmt.Sprintf("status %d", resp.StatusCode()), nil)
		c.health.RecordError(err)
		return 0, err
	}
	if out.Price <= 0 {
		err := NewProviderError("historical-api", fmt.Sprintf("non-positive %s price", metal), nil)
		c.health.RecordError(err)
		return 0, err
	}
	c.health.RecordSuccess()
	return metals.RoundCents(out.Price), nil
}

func (c *HistoricalClient) Health() HealthSnapshot { return c.health.Snapshot() }

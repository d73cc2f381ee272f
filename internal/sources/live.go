package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
)

// LiveClientConfig configures the live spot-price client.
type LiveClientConfig struct {
	BaseURL            string
	APIKey             string
	TimeoutSeconds     int
	RateLimitPerMinute int
	DailyCap           int
}

// LiveClient fetches current spot prices from the live upstream. The
// upstream is rate limited and budgeted, so the client refuses to
// spend requests it does not have; callers fall back to cached state.
type LiveClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	health  *HealthTracker
	apiKey  string

	mu            sync.Mutex
	requestsToday int
	dailyCap      int
	budgetReset   time.Time
}

type liveResponse struct {
	Success   bool    `json:"success"`
	Gold      float64 `json:"gold"`
	Silver    float64 `json:"silver"`
	Platinum  float64 `json:"platinum"`
	Palladium float64 `json:"palladium"`
	Error     string  `json:"error"`
}

// NewLiveClient creates the live client with conservative defaults.
func NewLiveClient(cfg LiveClientConfig) (*LiveClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("live source base URL is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 10
	}
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = 500
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(1)

	return &LiveClient{
		http:        http,
		limiter:     rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
		health:      NewHealthTracker("live"),
		apiKey:      cfg.APIKey,
		dailyCap:    cfg.DailyCap,
		budgetReset: time.Now().Add(24 * time.Hour),
	}, nil
}

// Current implements LiveSource.
func (c *LiveClient) Current(ctx context.Context) (metals.Prices, error) {
	if err := c.spendBudget(); err != nil {
		return nil, err
	}
	if !c.limiter.Allow() {
		return nil, NewRateLimitError("live", "request rate exceeded")
	}

	var out liveResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetResult(&out).
		Get("/v1/spot/latest")
	if err != nil {
		c.health.RecordError(err)
		return nil, NewNetworkError("live", "fetch current prices", err)
	}
	if resp.IsError() {
		err := NewProviderError("live", fmt.Sprintf("status %d", resp.StatusCode()), nil)
		c.health.RecordError(err)
		return nil, err
	}
	if !out.Success {
		err := NewProviderError("live", "upstream reported failure: "+out.Error, nil)
		c.health.RecordError(err)
		return nil, err
	}

	prices := metals.Prices{
		metals.Gold:      out.Gold,
		metals.Silver:    out.Silver,
		metals.Platinum:  out.Platinum,
		metals.Palladium: out.Palladium,
	}
	for m, v := range prices {
		if v <= 0 {
			err := NewProviderError("live", fmt.Sprintf("non-positive %s price %v", m, v), nil)
			c.health.RecordError(err)
			return nil, err
		}
	}

	c.health.RecordSuccess()
	return prices.Rounded(), nil
}

// spendBudget consumes one request from the daily allowance.
func (c *LiveClient) spendBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().After(c.budgetReset) {
		c.requestsToday = 0
		c.budgetReset = time.Now().Add(24 * time.Hour)
	}
	if c.requestsToday >= c.dailyCap {
		observ.IncCounter("live_budget_exhausted_total", nil)
		return NewBudgetError("live", fmt.Sprintf("daily cap %d reached", c.dailyCap))
	}
	c.requestsToday++
	observ.SetGauge("live_budget_used", float64(c.requestsToday), nil)
	return nil
}

// Health returns the current upstream health snapshot.
func (c *LiveClient) Health() HealthSnapshot { return c.health.Snapshot() }

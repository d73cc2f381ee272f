// Package sources holds the clients for every external price feed the
// engine depends on: the live spot scraper, the ETF daily-bar provider,
// the secondary historical API, and the static built-in tables. Each
// client normalizes its upstream into the shared types here so callers
// never see provider-specific shapes.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metalfolio/price-engine/internal/etf"
	"github.com/metalfolio/price-engine/internal/metals"
)

// LiveSource exposes the current best price for every metal.
type LiveSource interface {
	Current(ctx context.Context) (metals.Prices, error)
}

// BarSource exposes daily OHLC bars for proxy ETF symbols.
type BarSource interface {
	DailyBar(ctx context.Context, symbol string, day time.Time) (etf.Bar, error)
	// LatestClose returns the most recent available closing price,
	// used by daily calibration.
	LatestClose(ctx context.Context, symbol string) (float64, error)
}

// HistoricalSource exposes per-metal prices for past calendar days.
type HistoricalSource interface {
	PriceOn(ctx context.Context, metal metals.Metal, day time.Time) (float64, error)
}

// Error kinds, used to decide whether a resolver tier should be
// treated as a miss (all of them are) and what to count in metrics.
const (
	KindNetwork   = "network"
	KindRateLimit = "rate_limit"
	KindProvider  = "provider_error"
	KindNotFound  = "not_found"
	KindBudget    = "budget_exhausted"
)

// SourceError carries the failure kind and the upstream it came from.
type SourceError struct {
	Kind    string
	Source  string
	Message string
	Cause   error
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error from %s: %s (%v)", e.Kind, e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error from %s: %s", e.Kind, e.Source, e.Message)
}

func (e *SourceError) Unwrap() error { return e.Cause }

func NewNetworkError(source, message string, cause error) *SourceError {
	return &SourceError{Kind: KindNetwork, Source: source, Message: message, Cause: cause}
}

func NewRateLimitError(source, message string) *SourceError {
	return &SourceError{Kind: KindRateLimit, Source: source, Message: message}
}

func NewProviderError(source, message string, cause error) *SourceError {
	return &SourceError{Kind: KindProvider, Source: source, Message: message, Cause: cause}
}

func NewNotFoundError(source, message string) *SourceError {
	return &SourceError{Kind: KindNotFound, Source: source, Message: message}
}

func NewBudgetError(source, message string) *SourceError {
	return &SourceError{Kind: KindBudget, Source: source, Message: message}
}

// IsNotFound reports whether err is a not_found source error, i.e. the
// upstream answered but has no data rather than being unreachable.
func IsNotFound(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindNotFound
}

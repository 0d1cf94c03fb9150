// Package marketdata provides daily bar sources for market context lookups.
package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"trade-journal/internal/config"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// Source fetches daily bars for a symbol.
type Source interface {
	Name() string
	// DailyBars returns bars dated within [from, to] inclusive, oldest first.
	// An empty slice with a nil error means the source had no bars in range.
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}

// NewSource builds the configured upstream source behind a circuit breaker,
// wrapped in the bar cache when one is given.
func NewSource(cfg *config.Config, cache store.CandleCache, logger zerolog.Logger) (Source, error) {
	var src Source

	switch cfg.Market.Source {
	case "yahoo":
		src = NewYahooSource(YahooConfig{
			BaseURL:           cfg.Market.YahooBaseURL,
			Timeout:           cfg.Market.FetchTimeout,
			RequestsPerSecond: cfg.Market.RequestsPerSecond,
		}, logger)
	case "kite":
		if cfg.Credentials.Kite.APIKey == "" || cfg.Credentials.Kite.AccessToken == "" {
			return nil, fmt.Errorf("kite source: %w", apperrors.ErrNotAuthenticated)
		}
		src = NewKiteSource(KiteConfig{
			APIKey:            cfg.Credentials.Kite.APIKey,
			AccessToken:       cfg.Credentials.Kite.AccessToken,
			Instruments:       cfg.Market.KiteInstruments,
			Timeout:           cfg.Market.FetchTimeout,
			RequestsPerSecond: cfg.Market.RequestsPerSecond,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown market source: %s", cfg.Market.Source)
	}

	if cfg.Market.BreakerFailures > 0 {
		src = NewBreakerSource(src, BreakerConfig{
			FailureThreshold: cfg.Market.BreakerFailures,
			Cooldown:         cfg.Market.BreakerCooldown,
		}, logger)
	}

	if cache != nil && cfg.Market.Cache.Enabled {
		src = NewCachedSource(src, cache, cfg.Market.Cache.MaxAge, logger)
	}
	return src, nil
}

// newHTTPClient returns the client used for upstream calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// inRange reports whether the calendar date of t lies within [from, to].
func inRange(t, from, to time.Time) bool {
	d := models.Day(t)
	return !d.Before(models.Day(from)) && !d.After(models.Day(to))
}

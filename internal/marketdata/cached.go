package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// CachedSource serves bars from the local cache when a previous fetch covers
// the request, and otherwise fetches upstream and records the result.
type CachedSource struct {
	upstream Source
	cache    store.CandleCache
	maxAge   time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewCachedSource wraps upstream with cache.
func NewCachedSource(upstream Source, cache store.CandleCache, maxAge time.Duration, logger zerolog.Logger) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		cache:    cache,
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger.With().Str("component", "bar_cache").Logger(),
	}
}

// Name returns the upstream name.
func (c *CachedSource) Name() string {
	return c.upstream.Name()
}

// DailyBars returns cached bars when fresh, otherwise refreshes from upstream.
// On upstream failure a stale cached range is served instead.
func (c *CachedSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	fetchedAt, covered, err := c.cache.Coverage(ctx, symbol, from, to)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Cache lookup failed")
		covered = false
	}

	if covered && c.fresh(fetchedAt, to) {
		bars, err := c.cache.GetCandles(ctx, symbol, from, to)
		if err == nil {
			c.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Served from cache")
			return bars, nil
		}
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Cache read failed")
	}

	bars, err := c.upstream.DailyBars(ctx, symbol, from, to)
	if err != nil {
		if covered {
			if stale, cacheErr := c.cache.GetCandles(ctx, symbol, from, to); cacheErr == nil {
				event := c.logger.Warn().Err(err).Str("symbol", symbol).Time("fetched_at", fetchedAt)
				if newest, ferr := c.cache.GetCandlesFreshness(ctx, symbol); ferr == nil {
					event = event.Time("newest_bar", newest)
				}
				event.Msg("Upstream failed, serving stale cache")
				return stale, nil
			}
		}
		return nil, err
	}

	if err := c.cache.SaveRange(ctx, symbol, from, to, c.now(), bars); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache bars")
	}
	return bars, nil
}

// fresh reports whether a range fetched at fetchedAt can be reused. Ranges that
// ended before the fetch day hold only settled bars and never expire.
func (c *CachedSource) fresh(fetchedAt, to time.Time) bool {
	if models.Day(to).Before(models.Day(fetchedAt)) {
		return true
	}
	return c.now().Sub(fetchedAt) < c.maxAge
}

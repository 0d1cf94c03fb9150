// Package enrich looks up point-in-time market context for a trade date.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trade-journal/internal/config"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/marketdata"
	"trade-journal/internal/models"
)

// Indicator names used in DataUnavailableError.
const (
	IndicatorVolatility = "volatility"
	IndicatorRegime     = "regime"
	IndicatorRate       = "rate"
)

// Settings holds the fetcher's symbols and regime constants.
type Settings struct {
	VolatilitySymbol string
	BenchmarkSymbol  string
	RateSymbol       string
	Timeout          time.Duration // per upstream call
	FallbackDays     int
	Window           int
	Threshold        float64
	LookbackDays     int
}

// SettingsFromConfig extracts fetcher settings from the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		VolatilitySymbol: cfg.Market.VolatilitySymbol,
		BenchmarkSymbol:  cfg.Market.BenchmarkSymbol,
		RateSymbol:       cfg.Market.RateSymbol,
		Timeout:          cfg.Market.FetchTimeout,
		FallbackDays:     cfg.Market.FallbackDays,
		Window:           cfg.Regime.Window,
		Threshold:        cfg.Regime.Threshold,
		LookbackDays:     cfg.Regime.LookbackDays,
	}
}

// Fetcher builds market snapshots from a bar source.
type Fetcher struct {
	source   marketdata.Source
	settings Settings
	logger   zerolog.Logger
}

// NewFetcher creates a new context fetcher.
func NewFetcher(source marketdata.Source, settings Settings, logger zerolog.Logger) *Fetcher {
	if settings.FallbackDays < 1 {
		settings.FallbackDays = 1
	}
	return &Fetcher{
		source:   source,
		settings: settings,
		logger:   logger.With().Str("component", "enrich").Logger(),
	}
}

// Fetch returns the market context as of date. When no bar exists for date
// itself (weekend, holiday) the most recent prior trading day is used.
//
// Indicators that cannot be obtained are left nil (regime Unknown) and
// reported through a joined error of *DataUnavailableError values; the
// returned snapshot is usable either way.
func (f *Fetcher) Fetch(ctx context.Context, date time.Time) (models.MarketSnapshot, error) {
	date = models.Day(date)
	snap := models.MarketSnapshot{Date: date}
	var errs []error

	if sym := f.settings.VolatilitySymbol; sym != "" {
		bar, err := f.lastBar(ctx, IndicatorVolatility, sym, date)
		if err != nil {
			errs = append(errs, err)
		} else {
			snap.Volatility = models.Float(bar.Close)
			snap.AsOf = bar.Timestamp
		}
	}

	if err := f.fetchRegime(ctx, date, &snap); err != nil {
		errs = append(errs, err)
	}

	if sym := f.settings.RateSymbol; sym != "" {
		bar, err := f.lastBar(ctx, IndicatorRate, sym, date)
		if err != nil {
			errs = append(errs, err)
		} else {
			snap.Rate = models.Float(bar.Close)
			if snap.AsOf.IsZero() {
				snap.AsOf = bar.Timestamp
			}
		}
	}

	for _, err := range errs {
		f.logger.Warn().Err(err).Str("date", date.Format(models.DateLayout)).Msg("Market context unavailable")
	}

	f.logger.Debug().
		Str("date", date.Format(models.DateLayout)).
		Str("as_of", snap.AsOf.Format(models.DateLayout)).
		Str("regime", snap.Regime.Label()).
		Msg("Market context fetched")

	return snap, apperrors.Join(errs...)
}

// fetchRegime classifies the benchmark trend on date. The benchmark close
// also sets AsOf, since it is the reference index for the snapshot.
func (f *Fetcher) fetchRegime(ctx context.Context, date time.Time, snap *models.MarketSnapshot) error {
	sym := f.settings.BenchmarkSymbol
	from := date.AddDate(0, 0, -f.settings.LookbackDays)

	bars, err := f.bars(ctx, sym, from, date)
	if err != nil {
		return apperrors.NewDataUnavailableError(IndicatorRegime, sym, date, "fetch failed", err)
	}
	if len(bars) == 0 {
		return apperrors.NewDataUnavailableError(IndicatorRegime, sym, date,
			fmt.Sprintf("no bars in %d-day lookback", f.settings.LookbackDays), apperrors.ErrDataNotFound)
	}

	last := bars[len(bars)-1]
	if date.Sub(last.Timestamp) > time.Duration(f.settings.FallbackDays)*24*time.Hour {
		return apperrors.NewDataUnavailableError(IndicatorRegime, sym, date,
			fmt.Sprintf("no trading day within %d days", f.settings.FallbackDays), apperrors.ErrDataNotFound)
	}
	snap.BenchmarkClose = models.Float(last.Close)
	snap.AsOf = last.Timestamp

	trend, err := Trend(bars, f.settings.Window)
	if err != nil {
		return apperrors.NewDataUnavailableError(IndicatorRegime, sym, date,
			fmt.Sprintf("%d bars for a %d-day trend", len(bars), f.settings.Window), err)
	}
	snap.Trend = models.Float(trend)
	snap.Regime = ClassifyRegime(trend, f.settings.Threshold)
	return nil
}

// lastBar returns the most recent bar on or before date within the fallback window.
func (f *Fetcher) lastBar(ctx context.Context, indicator, symbol string, date time.Time) (models.Candle, error) {
	from := date.AddDate(0, 0, -f.settings.FallbackDays)

	bars, err := f.bars(ctx, symbol, from, date)
	if err != nil {
		return models.Candle{}, apperrors.NewDataUnavailableError(indicator, symbol, date, "fetch failed", err)
	}
	if len(bars) == 0 {
		return models.Candle{}, apperrors.NewDataUnavailableError(indicator, symbol, date,
			fmt.Sprintf("no trading day within %d days", f.settings.FallbackDays), apperrors.ErrDataNotFound)
	}
	return bars[len(bars)-1], nil
}

// bars fetches [from, date] under the per-call timeout and drops anything
// dated after date.
func (f *Fetcher) bars(ctx context.Context, symbol string, from, date time.Time) ([]models.Candle, error) {
	callCtx := ctx
	if f.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.settings.Timeout)
		defer cancel()
	}

	bars, err := f.source.DailyBars(callCtx, symbol, from, date)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && !apperrors.Is(err, apperrors.ErrTimeout) {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, err
	}

	n := len(bars)
	for n > 0 && models.Day(bars[n-1].Timestamp).After(date) {
		n--
	}
	return bars[:n], nil
}

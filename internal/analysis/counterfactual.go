package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/marketdata"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
	"trade-journal/pkg/utils"
)

// Status describes where a trade is in the counter-factual lifecycle.
type Status string

const (
	StatusOpen       Status = "open"       // no exit yet
	StatusAwaiting   Status = "awaiting"   // closed, horizon not yet elapsed
	StatusPending    Status = "pending"    // horizon elapsed, post-exit price missing
	StatusBackfilled Status = "backfilled" // post-exit price recorded
)

// AnalyzerConfig holds counter-factual settings.
type AnalyzerConfig struct {
	HorizonDays     int
	PriceBufferDays int           // days searched past the horizon for a trading day
	Timeout         time.Duration // per upstream call
}

// Analyzer backfills the post-exit price of closed trades once the horizon
// has elapsed and derives the missed gain from it.
type Analyzer struct {
	source marketdata.Source
	store  store.TradeStore
	cfg    AnalyzerConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewAnalyzer creates a new counter-factual analyzer.
func NewAnalyzer(source marketdata.Source, st store.TradeStore, cfg AnalyzerConfig, logger zerolog.Logger) *Analyzer {
	if cfg.HorizonDays < 1 {
		cfg.HorizonDays = 14
	}
	if cfg.PriceBufferDays < 0 {
		cfg.PriceBufferDays = 0
	}
	return &Analyzer{
		source: source,
		store:  st,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "counterfactual").Logger(),
	}
}

// SetClock overrides the analyzer's notion of now.
func (a *Analyzer) SetClock(now func() time.Time) {
	a.now = now
}

// Today returns the exchange-local date the analyzer classifies trades against.
func (a *Analyzer) Today() time.Time {
	return utils.ExchangeDate(a.now())
}

// HorizonDate returns exit date + horizon. ok is false for open trades.
func (a *Analyzer) HorizonDate(t models.TradeRecord) (time.Time, bool) {
	if t.ExitDate == nil {
		return time.Time{}, false
	}
	return models.Day(*t.ExitDate).AddDate(0, 0, a.cfg.HorizonDays), true
}

// Status classifies t relative to the current exchange date. The horizon
// day only counts as elapsed once it is over, so a trade is still awaiting
// while that session trades.
func (a *Analyzer) Status(t models.TradeRecord) Status {
	switch {
	case !t.IsClosed():
		return StatusOpen
	case t.IsBackfilled():
		return StatusBackfilled
	}
	target, _ := a.HorizonDate(t)
	if !a.Today().After(target) {
		return StatusAwaiting
	}
	return StatusPending
}

// Eligible reports whether t is closed, past its horizon and not yet backfilled.
func (a *Analyzer) Eligible(t models.TradeRecord) bool {
	return a.Status(t) == StatusPending
}

// Backfill returns t with its post-exit price set to the close of the first
// completed trading day on or after the horizon date. Ineligible trades are returned
// unchanged with a nil error, so repeated calls are harmless. When no bar is
// found within the price buffer a *BackfillSkippedError is returned.
func (a *Analyzer) Backfill(ctx context.Context, t models.TradeRecord) (models.TradeRecord, error) {
	if !a.Eligible(t) {
		return t, nil
	}

	target, _ := a.HorizonDate(t)
	price, err := a.priceOnOrAfter(ctx, t.Symbol, target)
	if err != nil {
		return t, apperrors.NewBackfillSkippedError(string(t.ID), t.Symbol, target, err)
	}

	t.PostExitPrice = models.Float(price)
	return t, nil
}

func (a *Analyzer) priceOnOrAfter(ctx context.Context, symbol string, target time.Time) (float64, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	end := target.AddDate(0, 0, a.cfg.PriceBufferDays)
	bars, err := a.source.DailyBars(ctx, symbol, target, end)
	if err != nil {
		return 0, err
	}
	// Today's bar carries the live price until the close
	today := a.Today()
	for _, b := range bars {
		d := models.Day(b.Timestamp)
		if !d.Before(target) && d.Before(today) {
			return b.Close, nil
		}
	}
	return 0, fmt.Errorf("no trading day between %s and %s: %w",
		target.Format(models.DateLayout), end.Format(models.DateLayout), apperrors.ErrDataNotFound)
}

// BackfillReport counts the outcome of a BackfillAll pass.
type BackfillReport struct {
	Backfilled  int     `json:"backfilled"`
	Skipped     int     `json:"skipped"`
	Awaiting    int     `json:"awaiting"`
	AlreadyDone int     `json:"already_done"`
	Open        int     `json:"open"`
	Errors      []error `json:"-"`
}

// BackfillAll backfills every eligible trade in the store and persists each
// result immediately. Per-trade failures are logged and counted as skipped;
// they do not stop the pass.
func (a *Analyzer) BackfillAll(ctx context.Context) (BackfillReport, error) {
	var report BackfillReport

	trades, err := a.store.All(ctx)
	if err != nil {
		return report, apperrors.Wrap(err, "failed to read journal")
	}

	for _, t := range trades {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		switch a.Status(t) {
		case StatusOpen:
			report.Open++
			continue
		case StatusAwaiting:
			report.Awaiting++
			continue
		case StatusBackfilled:
			report.AlreadyDone++
			continue
		}

		log := logging.WithSymbol(logging.WithTradeID(a.logger, string(t.ID)), t.Symbol)

		updated, err := a.Backfill(ctx, t)
		if err == nil {
			err = a.store.Update(ctx, t.ID, store.BackfillUpdate{PostExitPrice: *updated.PostExitPrice})
		}
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, err)
			if apperrors.IsBackfillSkipped(err) {
				log.Info().Err(err).Msg("Horizon price not available yet, will retry on next refresh")
			} else {
				log.Warn().Err(err).Msg("Backfill failed, will retry on next refresh")
			}
			continue
		}

		report.Backfilled++
		gain, _ := MissedGain(updated)
		logging.LogBackfill(a.logger, string(t.ID), t.Symbol, *updated.PostExitPrice, gain)
	}

	return report, nil
}

// MissedGain returns (post-exit price - exit price) x direction sign x
// quantity, rounded to cents. Positive means money was left on the table.
// ok is false until the trade is backfilled.
func MissedGain(t models.TradeRecord) (float64, bool) {
	if !t.IsClosed() || !t.IsBackfilled() {
		return 0, false
	}
	diff := decimal.NewFromFloat(*t.PostExitPrice).Sub(decimal.NewFromFloat(*t.ExitPrice))
	return money(diff.
		Mul(decimal.NewFromFloat(t.Direction.Sign())).
		Mul(decimal.NewFromInt(int64(t.Quantity)))), true
}

// MissedGainPercent returns the signed percentage move from exit to the
// post-exit price.
func MissedGainPercent(t models.TradeRecord) (float64, bool) {
	if !t.IsClosed() || !t.IsBackfilled() || *t.ExitPrice == 0 {
		return 0, false
	}
	return (*t.PostExitPrice - *t.ExitPrice) / *t.ExitPrice * 100 * t.Direction.Sign(), true
}

// Package journal wires the context fetcher, trade store and analyzers into
// the entry, refresh and dashboard flows.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trade-journal/internal/analysis"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// ContextFetcher provides market context for a date.
type ContextFetcher interface {
	Fetch(ctx context.Context, date time.Time) (models.MarketSnapshot, error)
}

// Service is the journal's application layer.
type Service struct {
	store      store.TradeStore
	fetcher    ContextFetcher
	analyzer   *analysis.Analyzer
	volatility models.VolatilityThresholds
	logger     zerolog.Logger
}

// NewService creates a journal service.
func NewService(st store.TradeStore, fetcher ContextFetcher, analyzer *analysis.Analyzer, volatility models.VolatilityThresholds, logger zerolog.Logger) *Service {
	return &Service{
		store:      st,
		fetcher:    fetcher,
		analyzer:   analyzer,
		volatility: volatility,
		logger:     logger.With().Str("component", "journal").Logger(),
	}
}

// LogResult reports a logged trade and any context that was unavailable.
type LogResult struct {
	ID       models.RecordID       `json:"id"`
	Record   models.TradeRecord    `json:"record"`
	Snapshot models.MarketSnapshot `json:"snapshot"`
	// Warning is set when some market context could not be fetched.
	Warning error `json:"-"`
}

// LogTrade enriches entry with market context at its entry date and appends
// it to the store. Missing market data never blocks the entry; the affected
// fields are stored empty and the reason is returned in LogResult.Warning.
func (s *Service) LogTrade(ctx context.Context, entry models.TradeEntry) (LogResult, error) {
	rec := models.TradeRecord{
		Symbol:     strings.ToUpper(strings.TrimSpace(entry.Symbol)),
		Direction:  entry.Direction,
		EntryDate:  models.Day(entry.EntryDate),
		EntryPrice: entry.EntryPrice,
		ExitPrice:  entry.ExitPrice,
		Quantity:   entry.Quantity,
		Notes:      strings.TrimSpace(entry.Notes),
	}
	if entry.ExitDate != nil {
		rec.ExitDate = models.Time(models.Day(*entry.ExitDate))
	}

	// Reject bad input before spending network calls on it
	if err := store.ValidateRecord(rec); err != nil {
		return LogResult{}, err
	}

	var result LogResult
	snap, err := s.fetcher.Fetch(ctx, rec.EntryDate)
	if err != nil {
		if !apperrors.IsDataUnavailable(err) {
			return LogResult{}, fmt.Errorf("failed to fetch market context: %w", err)
		}
		result.Warning = err
		log := logging.WithSymbol(s.logger, rec.Symbol)
		log.Warn().Err(err).Msg("Logging trade with partial market context")
	}
	rec.ApplySnapshot(snap)

	id, err := s.store.Append(ctx, rec)
	if err != nil {
		return LogResult{}, err
	}
	rec.ID = id

	logging.LogTrade(s.logger, string(id), rec.Symbol, string(rec.Direction), rec.Quantity, rec.EntryPrice, rec.EntryRegime.Label())

	result.ID = id
	result.Record = rec
	result.Snapshot = snap
	return result, nil
}

// Refresh backfills every eligible trade.
func (s *Service) Refresh(ctx context.Context) (analysis.BackfillReport, error) {
	log := logging.WithOperation(s.logger, "refresh")
	report, err := s.analyzer.BackfillAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Refresh aborted")
		return report, err
	}
	log.Info().
		Int("backfilled", report.Backfilled).
		Int("skipped", report.Skipped).
		Int("awaiting", report.Awaiting).
		Msg("Refresh complete")
	return report, nil
}

// TradeView is a trade with its derived values.
type TradeView struct {
	Record            models.TradeRecord     `json:"record"`
	Status            analysis.Status        `json:"status"`
	PnL               *float64               `json:"pnl,omitempty"`
	ReturnPercent     *float64               `json:"return_pct,omitempty"`
	MissedGain        *float64               `json:"missed_gain,omitempty"`
	MissedGainPercent *float64               `json:"missed_gain_pct,omitempty"`
	Volatility        models.VolatilityLevel `json:"volatility_level"`
	HorizonDate       *time.Time             `json:"horizon_date,omitempty"`
}

// Dashboard holds everything the presentation layer renders.
type Dashboard struct {
	Trades   []TradeView             `json:"trades"`
	WinRates []analysis.WinRateGroup `json:"win_rates"`
	GroupBy  analysis.GroupBy        `json:"group_by"`
	Equity   []analysis.EquityPoint  `json:"equity"`
	Summary  analysis.Summary        `json:"summary"`
}

// Dashboard reads the store once and computes all derived views.
func (s *Service) Dashboard(ctx context.Context, groupBy analysis.GroupBy) (Dashboard, error) {
	trades, err := s.store.All(ctx)
	if err != nil {
		return Dashboard{}, apperrors.Wrap(err, "failed to read journal")
	}

	d := Dashboard{
		Trades:   make([]TradeView, 0, len(trades)),
		WinRates: analysis.WinRateByKey(trades, groupBy.KeyFunc(s.volatility), groupBy == analysis.GroupNone),
		GroupBy:  groupBy,
		Equity:   analysis.EquityCurve(trades),
		Summary:  analysis.Summarize(trades),
	}
	for _, t := range trades {
		d.Trades = append(d.Trades, s.View(t))
	}
	return d, nil
}

// View derives display values for a single trade.
func (s *Service) View(t models.TradeRecord) TradeView {
	v := TradeView{
		Record:     t,
		Status:     s.analyzer.Status(t),
		Volatility: s.volatility.Level(t.EntryVolatility),
	}
	if pnl, ok := analysis.RealizedPnL(t); ok {
		v.PnL = models.Float(pnl)
	}
	if r, ok := analysis.ReturnPercent(t); ok {
		v.ReturnPercent = models.Float(r)
	}
	if g, ok := analysis.MissedGain(t); ok {
		v.MissedGain = models.Float(g)
	}
	if g, ok := analysis.MissedGainPercent(t); ok {
		v.MissedGainPercent = models.Float(g)
	}
	if h, ok := s.analyzer.HorizonDate(t); ok {
		v.HorizonDate = &h
	}
	return v
}

// Trade returns one trade's view. ref may be a full ID or a unique prefix.
func (s *Service) Trade(ctx context.Context, ref string) (TradeView, error) {
	t, err := s.store.Get(ctx, models.RecordID(ref))
	if err == nil {
		return s.View(t), nil
	}
	if !apperrors.Is(err, apperrors.ErrRecordNotFound) || ref == "" {
		return TradeView{}, err
	}

	trades, err := s.store.All(ctx)
	if err != nil {
		return TradeView{}, apperrors.Wrap(err, "failed to read journal")
	}
	var matches []models.TradeRecord
	for _, t := range trades {
		if strings.HasPrefix(string(t.ID), ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return TradeView{}, fmt.Errorf("trade %s: %w", ref, apperrors.ErrRecordNotFound)
	case 1:
		return s.View(matches[0]), nil
	default:
		return TradeView{}, apperrors.NewValidationError("id", ref, fmt.Sprintf("prefix matches %d trades", len(matches)))
	}
}

// OpenPositions values open trades at the latest close on or before asOf.
func (s *Service) OpenPositions(ctx context.Context, asOf time.Time) ([]analysis.OpenPosition, error) {
	trades, err := s.store.All(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read journal")
	}
	return s.analyzer.MarkToMarket(ctx, trades, asOf)
}

// Context returns the market snapshot for date.
func (s *Service) Context(ctx context.Context, date time.Time) (models.MarketSnapshot, error) {
	return s.fetcher.Fetch(ctx, date)
}

package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trade-journal/internal/analysis"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

type stubFetcher struct {
	snap  models.MarketSnapshot
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, date time.Time) (models.MarketSnapshot, error) {
	f.calls++
	s := f.snap
	s.Date = date
	return s, f.err
}

type stubSource struct {
	bars map[string][]models.Candle
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, b := range s.bars[symbol] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestService(t *testing.T, fetcher *stubFetcher, src *stubSource, today string) (*Service, *store.CSVStore) {
	t.Helper()
	st, err := store.NewCSVStore(filepath.Join(t.TempDir(), "trading_journal.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if src == nil {
		src = &stubSource{}
	}
	an := analysis.NewAnalyzer(src, st, analysis.AnalyzerConfig{HorizonDays: 14, PriceBufferDays: 4}, zerolog.Nop())
	now := day(today).Add(20 * time.Hour)
	an.SetClock(func() time.Time { return now })
	return NewService(st, fetcher, an, models.DefaultVolatilityThresholds(), zerolog.Nop()), st
}

func TestLogTrade_EnrichesAndPersists(t *testing.T) {
	fetcher := &stubFetcher{snap: models.MarketSnapshot{
		Volatility: models.Float(13.2),
		Regime:     models.RegimeBull,
		Rate:       models.Float(4.1),
	}}
	svc, st := newTestService(t, fetcher, nil, "2024-03-20")

	res, err := svc.LogTrade(context.Background(), models.TradeEntry{
		Symbol:     " nvda ",
		Direction:  models.DirectionLong,
		EntryDate:  day("2024-03-09"),
		EntryPrice: 875.3,
		Quantity:   4,
		Notes:      "  AI momentum  ",
	})
	if err != nil {
		t.Fatalf("LogTrade() error = %v", err)
	}
	if res.Warning != nil {
		t.Errorf("unexpected warning: %v", res.Warning)
	}

	got, err := st.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "NVDA" || got.Notes != "AI momentum" {
		t.Errorf("record = %+v", got)
	}
	if got.EntryRegime != models.RegimeBull || *got.EntryVolatility != 13.2 || *got.EntryRate != 4.1 {
		t.Errorf("market context not stored: %+v", got)
	}
}

func TestLogTrade_DataUnavailableDoesNotBlock(t *testing.T) {
	fetcher := &stubFetcher{
		snap: models.MarketSnapshot{Volatility: models.Float(22)},
		err:  apperrors.NewDataUnavailableError("regime", "SPY", day("2024-03-08"), "fetch failed", errors.New("timeout")),
	}
	svc, st := newTestService(t, fetcher, nil, "2024-03-20")

	res, err := svc.LogTrade(context.Background(), models.TradeEntry{
		Symbol: "AAPL", Direction: models.DirectionShort,
		EntryDate: day("2024-03-08"), EntryPrice: 170, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("LogTrade() error = %v", err)
	}
	if !apperrors.IsDataUnavailable(res.Warning) {
		t.Errorf("Warning = %v, want DataUnavailable", res.Warning)
	}

	got, _ := st.Get(context.Background(), res.ID)
	if got.EntryRegime != models.RegimeUnknown || got.EntryRate != nil || *got.EntryVolatility != 22 {
		t.Errorf("partial context not stored as expected: %+v", got)
	}
}

func TestLogTrade_ValidationSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, st := newTestService(t, fetcher, nil, "2024-03-20")

	_, err := svc.LogTrade(context.Background(), models.TradeEntry{
		Symbol: "AAPL", Direction: models.DirectionLong,
		EntryDate: day("2024-03-08"), EntryPrice: 170, Quantity: 0,
	})
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if fetcher.calls != 0 {
		t.Error("market context fetched for invalid entry")
	}
	all, _ := st.All(context.Background())
	if len(all) != 0 {
		t.Error("invalid entry persisted")
	}
}

func TestRefreshAndDashboard(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{bars: map[string][]models.Candle{
		"SPY": {{Timestamp: day("2024-02-16"), Close: 115}},
	}}
	svc, _ := newTestService(t, &stubFetcher{snap: models.MarketSnapshot{Regime: models.RegimeBull}}, src, "2024-03-01")

	entries := []models.TradeEntry{
		{Symbol: "SPY", Direction: models.DirectionLong, EntryDate: day("2024-01-29"), EntryPrice: 100,
			ExitDate: models.Time(day("2024-02-02")), ExitPrice: models.Float(110), Quantity: 1},
		{Symbol: "QQQ", Direction: models.DirectionLong, EntryDate: day("2024-02-05"), EntryPrice: 100,
			ExitDate: models.Time(day("2024-02-26")), ExitPrice: models.Float(96), Quantity: 1},
		{Symbol: "IWM", Direction: models.DirectionLong, EntryDate: day("2024-02-27"), EntryPrice: 200, Quantity: 2},
	}
	for _, e := range entries {
		if _, err := svc.LogTrade(ctx, e); err != nil {
			t.Fatalf("LogTrade() error = %v", err)
		}
	}

	report, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if report.Backfilled != 1 || report.Awaiting != 1 || report.Open != 1 {
		t.Errorf("report = %+v", report)
	}

	d, err := svc.Dashboard(ctx, analysis.GroupRegime)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if len(d.Trades) != 3 {
		t.Fatalf("trades = %d, want 3", len(d.Trades))
	}
	if d.Trades[0].Status != analysis.StatusBackfilled || *d.Trades[0].MissedGain != 5 {
		t.Errorf("first trade view = %+v", d.Trades[0])
	}
	if d.Trades[1].Status != analysis.StatusAwaiting || d.Trades[1].MissedGain != nil {
		t.Errorf("second trade view = %+v", d.Trades[1])
	}
	if d.Trades[2].Status != analysis.StatusOpen || d.Trades[2].PnL != nil {
		t.Errorf("open trade view = %+v", d.Trades[2])
	}

	if len(d.WinRates) != 1 || d.WinRates[0].Key != "Bull" || d.WinRates[0].Count != 2 || d.WinRates[0].Wins != 1 {
		t.Errorf("win rates = %+v", d.WinRates)
	}
	if len(d.Equity) != 2 || d.Equity[1].Cumulative != 6 {
		t.Errorf("equity = %+v", d.Equity)
	}
	if d.Summary.TotalTrades != 3 || d.Summary.NetPnL != 6 {
		t.Errorf("summary = %+v", d.Summary)
	}
}

func TestTrade_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &stubFetcher{}, nil, "2024-03-01")
	if _, err := svc.Trade(context.Background(), "missing"); !errors.Is(err, apperrors.ErrRecordNotFound) {
		t.Errorf("error = %v, want ErrRecordNotFound", err)
	}
}

func TestTrade_ResolvesPrefix(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubFetcher{}, nil, "2024-03-01")

	res, err := svc.LogTrade(ctx, models.TradeEntry{
		Symbol: "SPY", Direction: models.DirectionLong,
		EntryDate: day("2024-02-01"), EntryPrice: 480, Quantity: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	v, err := svc.Trade(ctx, string(res.ID)[:8])
	if err != nil {
		t.Fatalf("Trade(prefix) error = %v", err)
	}
	if v.Record.ID != res.ID {
		t.Errorf("resolved %s, want %s", v.Record.ID, res.ID)
	}
}

package marketdata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

type countingSource struct {
	calls int
	bars  []models.Candle
	err   error
}

func (s *countingSource) Name() string { return "fake" }

func (s *countingSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Candle
	for _, b := range s.bars {
		if inRange(b.Timestamp, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func newCache(t *testing.T) *store.SQLiteCandleCache {
	t.Helper()
	cache, err := store.NewSQLiteCandleCache(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCandleCache() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachedSource_ServesSettledRangeFromCache(t *testing.T) {
	upstream := &countingSource{bars: []models.Candle{
		{Timestamp: mustDate("2024-03-07"), Close: 100},
		{Timestamp: mustDate("2024-03-08"), Close: 101},
	}}
	src := NewCachedSource(upstream, newCache(t), time.Hour, zerolog.Nop())
	src.now = func() time.Time { return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		bars, err := src.DailyBars(ctx, "SPY", mustDate("2024-03-01"), mustDate("2024-03-10"))
		if err != nil {
			t.Fatalf("DailyBars() error = %v", err)
		}
		if len(bars) != 2 || bars[1].Close != 101 {
			t.Fatalf("bars = %+v", bars)
		}
	}
	if upstream.calls != 1 {
		t.Errorf("upstream called %d times, want 1", upstream.calls)
	}

	// A sub-range is covered too, including a weekend with no bars
	bars, err := src.DailyBars(ctx, "SPY", mustDate("2024-03-09"), mustDate("2024-03-10"))
	if err != nil || len(bars) != 0 {
		t.Errorf("weekend sub-range = %v, %v; want empty", bars, err)
	}
	if upstream.calls != 1 {
		t.Errorf("sub-range hit upstream")
	}
}

func TestCachedSource_RefreshesOpenRangeAfterMaxAge(t *testing.T) {
	upstream := &countingSource{bars: []models.Candle{{Timestamp: mustDate("2024-04-01"), Close: 100}}}
	src := NewCachedSource(upstream, newCache(t), time.Hour, zerolog.Nop())

	now := time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	ctx := context.Background()
	from, to := mustDate("2024-03-25"), mustDate("2024-04-01")

	src.DailyBars(ctx, "SPY", from, to)
	src.DailyBars(ctx, "SPY", from, to)
	if upstream.calls != 1 {
		t.Fatalf("upstream called %d times within max age, want 1", upstream.calls)
	}

	now = now.Add(2 * time.Hour)
	src.DailyBars(ctx, "SPY", from, to)
	if upstream.calls != 2 {
		t.Errorf("upstream called %d times after max age, want 2", upstream.calls)
	}
}

func TestCachedSource_StaleOnUpstreamError(t *testing.T) {
	upstream := &countingSource{bars: []models.Candle{{Timestamp: mustDate("2024-04-01"), Close: 100}}}
	src := NewCachedSource(upstream, newCache(t), time.Minute, zerolog.Nop())

	now := time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	ctx := context.Background()
	from, to := mustDate("2024-03-25"), mustDate("2024-04-01")
	if _, err := src.DailyBars(ctx, "SPY", from, to); err != nil {
		t.Fatal(err)
	}

	now = now.Add(time.Hour)
	upstream.err = errors.New("connection refused")
	bars, err := src.DailyBars(ctx, "SPY", from, to)
	if err != nil {
		t.Fatalf("DailyBars() error = %v, want stale cache", err)
	}
	if len(bars) != 1 {
		t.Errorf("stale bars = %+v", bars)
	}

	if _, err := src.DailyBars(ctx, "QQQ", from, to); err == nil {
		t.Error("uncached symbol should surface upstream error")
	}
}

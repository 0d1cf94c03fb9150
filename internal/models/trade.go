package models

import "time"

// RecordID identifies a trade record within the journal.
type RecordID string

// TradeRecord represents one logged trade plus its enrichment fields.
// Optional values are nil when absent.
type TradeRecord struct {
	ID         RecordID
	Symbol     string
	Direction  Direction
	EntryDate  time.Time
	EntryPrice float64
	ExitDate   *time.Time
	ExitPrice  *float64
	Quantity   int

	// Market context at entry.
	EntryRegime     Regime
	EntryVolatility *float64
	EntryRate       *float64

	// Close at exit date + horizon, backfilled later.
	PostExitPrice *float64

	Notes string
}

// IsClosed reports whether the trade has both exit fields.
func (t TradeRecord) IsClosed() bool {
	return t.ExitDate != nil && t.ExitPrice != nil
}

// IsBackfilled reports whether the post-exit price has been populated.
func (t TradeRecord) IsBackfilled() bool {
	return t.PostExitPrice != nil
}

// ApplySnapshot folds market context into the record.
func (t *TradeRecord) ApplySnapshot(s MarketSnapshot) {
	t.EntryRegime = s.Regime
	t.EntryVolatility = s.Volatility
	t.EntryRate = s.Rate
}

// MarketSnapshot holds point-in-time macro indicators for a date.
// It is never persisted on its own.
type MarketSnapshot struct {
	Date           time.Time // requested date
	AsOf           time.Time // trading day the values were taken from
	Volatility     *float64
	Regime         Regime
	Rate           *float64
	BenchmarkClose *float64
	Trend          *float64 // close / SMA(N) - 1
}

// TradeEntry is a trade-entry submission before enrichment.
type TradeEntry struct {
	Symbol     string
	Direction  Direction
	EntryDate  time.Time
	EntryPrice float64
	ExitDate   *time.Time
	ExitPrice  *float64
	Quantity   int
	Notes      string
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Time returns a pointer to t.
func Time(t time.Time) *time.Time {
	return &t
}

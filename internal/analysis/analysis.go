// Package analysis computes counter-factual outcomes and aggregate
// statistics over journaled trades.
package analysis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// GroupBy selects how win rates are partitioned.
type GroupBy string

const (
	GroupNone       GroupBy = "none"
	GroupRegime     GroupBy = "regime"
	GroupVolatility GroupBy = "volatility"
)

// AllKey is the single group key used with GroupNone.
const AllKey = "all"

// ParseGroupBy parses a grouping name; empty means GroupNone.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupNone:
		return GroupNone, nil
	case GroupRegime:
		return GroupRegime, nil
	case GroupVolatility:
		return GroupVolatility, nil
	default:
		return "", fmt.Errorf("unknown grouping %q (must be none, regime or volatility)", s)
	}
}

// KeyFunc returns the function that maps a trade to its group key.
func (g GroupBy) KeyFunc(thresholds models.VolatilityThresholds) func(models.TradeRecord) string {
	switch g {
	case GroupRegime:
		return func(t models.TradeRecord) string { return t.EntryRegime.Label() }
	case GroupVolatility:
		return func(t models.TradeRecord) string { return string(thresholds.Level(t.EntryVolatility)) }
	default:
		return func(models.TradeRecord) string { return AllKey }
	}
}

// groupRank orders well-known keys; others sort after, alphabetically.
var groupRank = map[string]int{
	AllKey:                            0,
	string(models.RegimeBull):         1,
	string(models.RegimeBear):         2,
	"Unknown":                         3,
	string(models.VolatilityLow):      4,
	string(models.VolatilityNormal):   5,
	string(models.VolatilityElevated): 6,
	string(models.VolatilityHigh):     7,
	string(models.VolatilityExtreme):  8,
	string(models.VolatilityUnknown):  9,
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

package analysis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// RealizedPnL returns (exit - entry) x direction sign x quantity, rounded to
// cents. ok is false for open trades.
func RealizedPnL(t models.TradeRecord) (pnl float64, ok bool) {
	d, ok := realized(t)
	if !ok {
		return 0, false
	}
	return money(d), true
}

func realized(t models.TradeRecord) (decimal.Decimal, bool) {
	if !t.IsClosed() {
		return decimal.Zero, false
	}
	diff := decimal.NewFromFloat(*t.ExitPrice).Sub(decimal.NewFromFloat(t.EntryPrice))
	return diff.
		Mul(decimal.NewFromFloat(t.Direction.Sign())).
		Mul(decimal.NewFromInt(int64(t.Quantity))).
		Round(2), true
}

// ReturnPercent returns the signed percentage move from entry to exit.
func ReturnPercent(t models.TradeRecord) (float64, bool) {
	if !t.IsClosed() || t.EntryPrice == 0 {
		return 0, false
	}
	return (*t.ExitPrice - t.EntryPrice) / t.EntryPrice * 100 * t.Direction.Sign(), true
}

// WinRateGroup holds win counts for one group of closed trades.
type WinRateGroup struct {
	Key   string `json:"key"`
	Wins  int    `json:"wins"`
	Count int    `json:"count"`
}

// Ratio returns Wins/Count. ok is false for an empty group, whose win rate
// is undefined.
func (g WinRateGroup) Ratio() (ratio float64, ok bool) {
	if g.Count == 0 {
		return 0, false
	}
	return float64(g.Wins) / float64(g.Count), true
}

// WinRate partitions closed trades by groupBy and counts wins (realized P&L
// strictly positive). Open trades are excluded. Volatility buckets use the
// default thresholds; see WinRateByKey for custom keys.
func WinRate(trades []models.TradeRecord, groupBy GroupBy) []WinRateGroup {
	return WinRateByKey(trades, groupBy.KeyFunc(models.DefaultVolatilityThresholds()), groupBy == GroupNone)
}

// WinRateByKey groups closed trades with key. When includeEmpty is set and
// there are no closed trades, a single empty "all" group is returned.
func WinRateByKey(trades []models.TradeRecord, key func(models.TradeRecord) string, includeEmpty bool) []WinRateGroup {
	groups := make(map[string]*WinRateGroup)
	for _, t := range trades {
		pnl, ok := realized(t)
		if !ok {
			continue
		}
		k := key(t)
		g, exists := groups[k]
		if !exists {
			g = &WinRateGroup{Key: k}
			groups[k] = g
		}
		g.Count++
		if pnl.IsPositive() {
			g.Wins++
		}
	}

	if len(groups) == 0 && includeEmpty {
		return []WinRateGroup{{Key: AllKey}}
	}

	out := make([]WinRateGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := groupRank[out[i].Key]
		rj, jok := groupRank[out[j].Key]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// EquityPoint is one step of the equity curve.
type EquityPoint struct {
	Date       time.Time       `json:"date"`
	TradeID    models.RecordID `json:"trade_id"`
	Symbol     string          `json:"symbol"`
	PnL        float64         `json:"pnl"`
	Cumulative float64         `json:"cumulative"`
}

// EquityCurve returns cumulative realized P&L over closed trades ordered by
// exit date. Trades sharing an exit date keep insertion order.
func EquityCurve(trades []models.TradeRecord) []EquityPoint {
	type closed struct {
		trade models.TradeRecord
		pnl   decimal.Decimal
	}

	var rows []closed
	for _, t := range trades {
		if pnl, ok := realized(t); ok {
			rows = append(rows, closed{trade: t, pnl: pnl})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return models.Day(*rows[i].trade.ExitDate).Before(models.Day(*rows[j].trade.ExitDate))
	})

	points := make([]EquityPoint, 0, len(rows))
	cum := decimal.Zero
	for _, r := range rows {
		cum = cum.Add(r.pnl)
		points = append(points, EquityPoint{
			Date:       models.Day(*r.trade.ExitDate),
			TradeID:    r.trade.ID,
			Symbol:     r.trade.Symbol,
			PnL:        money(r.pnl),
			Cumulative: money(cum),
		})
	}
	return points
}

// Summary holds headline performance metrics.
type Summary struct {
	TotalTrades  int     `json:"total_trades"`
	OpenTrades   int     `json:"open_trades"`
	ClosedTrades int     `json:"closed_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"` // negative or zero
	NetPnL       float64 `json:"net_pnl"`
	ProfitFactor float64 `json:"profit_factor"` // 0 when there are no losses
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	Expectancy   float64 `json:"expectancy"`
	AvgReturnPct float64 `json:"avg_return_pct"`
}

// Summarize computes headline metrics. Breakeven trades count as losses.
func Summarize(trades []models.TradeRecord) Summary {
	s := Summary{TotalTrades: len(trades)}

	profit, loss := decimal.Zero, decimal.Zero
	largestWin, largestLoss := decimal.Zero, decimal.Zero
	returns := 0.0

	for _, t := range trades {
		pnl, ok := realized(t)
		if !ok {
			s.OpenTrades++
			continue
		}
		s.ClosedTrades++
		if r, ok := ReturnPercent(t); ok {
			returns += r
		}

		if pnl.IsPositive() {
			s.Wins++
			profit = profit.Add(pnl)
			if pnl.GreaterThan(largestWin) {
				largestWin = pnl
			}
		} else {
			s.Losses++
			loss = loss.Add(pnl)
			if pnl.LessThan(largestLoss) {
				largestLoss = pnl
			}
		}
	}

	net := profit.Add(loss)
	s.GrossProfit = money(profit)
	s.GrossLoss = money(loss)
	s.NetPnL = money(net)
	s.LargestWin = money(largestWin)
	s.LargestLoss = money(largestLoss)

	if s.Wins > 0 {
		s.AvgWin = money(profit.Div(decimal.NewFromInt(int64(s.Wins))))
	}
	if s.Losses > 0 {
		s.AvgLoss = money(loss.Div(decimal.NewFromInt(int64(s.Losses))))
	}
	if !loss.IsZero() {
		s.ProfitFactor = profit.Div(loss.Neg()).Round(2).InexactFloat64()
	}
	if s.ClosedTrades > 0 {
		n := decimal.NewFromInt(int64(s.ClosedTrades))
		s.Expectancy = money(net.Div(n))
		s.AvgReturnPct = returns / float64(s.ClosedTrades)
	}
	return s
}

package analysis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// markLookbackDays bounds how far back the latest close is searched.
const markLookbackDays = 7

// OpenPosition is an open trade valued at the latest available close.
// It is display-only and never persisted.
type OpenPosition struct {
	Trade         models.TradeRecord `json:"trade"`
	LastPrice     *float64           `json:"last_price,omitempty"`
	AsOf          time.Time          `json:"as_of,omitempty"`
	UnrealizedPnL *float64           `json:"unrealized_pnl,omitempty"`
	ReturnPercent *float64           `json:"return_pct,omitempty"`
}

// MarkToMarket values each open trade at the most recent close on or before
// asOf. Prices that cannot be fetched leave the position unvalued and are
// reported through the joined error.
func (a *Analyzer) MarkToMarket(ctx context.Context, trades []models.TradeRecord, asOf time.Time) ([]OpenPosition, error) {
	asOf = models.Day(asOf)

	type quote struct {
		bar models.Candle
		err error
	}
	quotes := make(map[string]quote)

	var positions []OpenPosition
	var errs []error
	for _, t := range trades {
		if t.IsClosed() {
			continue
		}
		pos := OpenPosition{Trade: t}

		q, seen := quotes[t.Symbol]
		if !seen {
			q.bar, q.err = a.lastClose(ctx, t.Symbol, asOf)
			quotes[t.Symbol] = q
			if q.err != nil {
				errs = append(errs, q.err)
			}
		}

		if q.err == nil {
			price := q.bar.Close
			pnl := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(t.EntryPrice)).
				Mul(decimal.NewFromFloat(t.Direction.Sign())).
				Mul(decimal.NewFromInt(int64(t.Quantity)))
			ret := (price - t.EntryPrice) / t.EntryPrice * 100 * t.Direction.Sign()

			pos.LastPrice = models.Float(price)
			pos.AsOf = q.bar.Timestamp
			pos.UnrealizedPnL = models.Float(money(pnl))
			pos.ReturnPercent = models.Float(ret)
		}
		positions = append(positions, pos)
	}

	return positions, apperrors.Join(errs...)
}

func (a *Analyzer) lastClose(ctx context.Context, symbol string, asOf time.Time) (models.Candle, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	bars, err := a.source.DailyBars(ctx, symbol, asOf.AddDate(0, 0, -markLookbackDays), asOf)
	if err != nil {
		return models.Candle{}, apperrors.NewDataUnavailableError("price", symbol, asOf, "fetch failed", err)
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if !models.Day(bars[i].Timestamp).After(asOf) {
			return bars[i], nil
		}
	}
	return models.Candle{}, apperrors.NewDataUnavailableError("price", symbol, asOf, "no recent close", apperrors.ErrDataNotFound)
}

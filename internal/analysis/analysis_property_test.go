package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trade-journal/internal/models"
)

// Property: Backfill applied twice equals Backfill applied once.
func TestProperty_BackfillIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	src := &fakeSource{bars: map[string][]models.Candle{}}
	for d := day("2024-01-01"); d.Before(day("2024-06-01")); d = d.AddDate(0, 0, 1) {
		src.bars["SPY"] = append(src.bars["SPY"], models.Candle{Timestamp: d, Close: 400 + float64(d.YearDay())})
	}
	a := newAnalyzer(src, nil, "2024-04-01")

	properties.Property("Backfill(Backfill(t)) == Backfill(t)", prop.ForAll(
		func(exitOffset int, closed bool, short bool) bool {
			ctx := context.Background()
			dir := models.DirectionLong
			if short {
				dir = models.DirectionShort
			}
			tr := trade("p", dir, 400, 410, 3, "")
			if closed {
				tr.ExitDate = models.Time(day("2024-01-02").AddDate(0, 0, exitOffset))
				tr.ExitPrice = models.Float(410)
			}

			once, err1 := a.Backfill(ctx, tr)
			twice, err2 := a.Backfill(ctx, once)
			if err1 != nil || err2 != nil {
				t.Logf("unexpected errors: %v, %v", err1, err2)
				return false
			}
			if (once.PostExitPrice == nil) != (twice.PostExitPrice == nil) {
				return false
			}
			return once.PostExitPrice == nil || *once.PostExitPrice == *twice.PostExitPrice
		},
		gen.IntRange(0, 100),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: the final equity point equals the sum of realized P&L.
func TestProperty_EquityCurveEndsAtNetPnL(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("last cumulative == sum of realized P&L", prop.ForAll(
		func(exits []float64, offsets []int) bool {
			var trades []models.TradeRecord
			for i, exit := range exits {
				date := ""
				if i < len(offsets) && offsets[i] >= 0 {
					date = day("2024-01-01").AddDate(0, 0, offsets[i]).Format(models.DateLayout)
				}
				trades = append(trades, trade("t", models.DirectionLong, 100, math.Round(exit*100)/100, 1+i%3, date))
			}

			curve := EquityCurve(trades)
			sum := 0.0
			closed := 0
			for _, tr := range trades {
				if pnl, ok := RealizedPnL(tr); ok {
					sum += pnl
					closed++
				}
			}
			if len(curve) != closed {
				return false
			}
			if closed == 0 {
				return true
			}
			return math.Abs(curve[len(curve)-1].Cumulative-sum) < 0.005
		},
		gen.SliceOfN(10, gen.Float64Range(50, 150)),
		gen.SliceOfN(10, gen.IntRange(-1, 60)),
	))

	properties.TestingRun(t)
}

package enrich

import (
	"errors"

	"trade-journal/internal/models"
)

var (
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInsufficientData = errors.New("insufficient data")
)

// SMA returns the simple moving average of the last period closes.
func SMA(candles []models.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(candles) < period {
		return 0, ErrInsufficientData
	}

	window := candles[len(candles)-period:]
	sum := 0.0
	for _, c := range window {
		sum += c.Close
	}
	return sum / float64(period), nil
}

// Trend returns close / SMA(period) - 1 for the most recent bar.
func Trend(candles []models.Candle, period int) (float64, error) {
	sma, err := SMA(candles, period)
	if err != nil {
		return 0, err
	}
	if sma == 0 {
		return 0, ErrInsufficientData
	}
	return candles[len(candles)-1].Close/sma - 1, nil
}

// ClassifyRegime maps a trend reading to Bull when it exceeds threshold.
func ClassifyRegime(trend, threshold float64) models.Regime {
	if trend > threshold {
		return models.RegimeBull
	}
	return models.RegimeBear
}

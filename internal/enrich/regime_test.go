package enrich

import (
	"errors"
	"math"
	"testing"

	"trade-journal/internal/models"
)

func closes(values ...float64) []models.Candle {
	out := make([]models.Candle, len(values))
	for i, v := range values {
		out[i] = models.Candle{Close: v}
	}
	return out
}

func TestSMA(t *testing.T) {
	got, err := SMA(closes(1, 2, 3, 4, 5), 3)
	if err != nil || got != 4 {
		t.Errorf("SMA = %v, %v; want 4", got, err)
	}
	if _, err := SMA(closes(1, 2), 3); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("short input error = %v", err)
	}
	if _, err := SMA(closes(1, 2), 0); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("zero period error = %v", err)
	}
}

func TestTrend(t *testing.T) {
	// SMA(2) of 100,110 = 105; 110/105 - 1
	got, err := Trend(closes(90, 100, 110), 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := 110.0/105.0 - 1; math.Abs(got-want) > 1e-12 {
		t.Errorf("Trend = %v, want %v", got, want)
	}
}

func TestClassifyRegime(t *testing.T) {
	if ClassifyRegime(0.01, 0) != models.RegimeBull {
		t.Error("positive trend should be Bull")
	}
	if ClassifyRegime(0, 0) != models.RegimeBear {
		t.Error("zero trend should be Bear")
	}
	if ClassifyRegime(0.01, 0.02) != models.RegimeBear {
		t.Error("trend below threshold should be Bear")
	}
}

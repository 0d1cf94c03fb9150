// Package models provides domain models for the trade journal.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used throughout the journal.
const DateLayout = "2006-01-02"

// Direction represents the side of a discretionary position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ParseDirection parses a direction case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionLong:
		return DirectionLong, nil
	case DirectionShort:
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("unknown direction %q (must be long or short)", s)
	}
}

// Sign returns +1 for long and -1 for short positions.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Regime is the coarse market-trend classification of the benchmark index.
type Regime string

const (
	RegimeBull Regime = "Bull"
	RegimeBear Regime = "Bear"
	// RegimeUnknown is the zero value; it is stored as an empty cell.
	RegimeUnknown Regime = ""
)

// Label returns a display label; the unknown regime is shown as "Unknown".
func (r Regime) Label() string {
	if r == RegimeUnknown {
		return "Unknown"
	}
	return string(r)
}

// ParseRegime parses a stored regime label. Empty and "Unknown" map to RegimeUnknown.
func ParseRegime(s string) (Regime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return RegimeUnknown, nil
	case "bull":
		return RegimeBull, nil
	case "bear":
		return RegimeBear, nil
	default:
		return RegimeUnknown, fmt.Errorf("unknown regime %q", s)
	}
}

// VolatilityLevel buckets the volatility index level.
type VolatilityLevel string

const (
	VolatilityLow      VolatilityLevel = "LOW"      // < 15
	VolatilityNormal   VolatilityLevel = "NORMAL"   // 15 <= v < 20
	VolatilityElevated VolatilityLevel = "ELEVATED" // 20 <= v < 25
	VolatilityHigh     VolatilityLevel = "HIGH"     // 25 <= v < 30
	VolatilityExtreme  VolatilityLevel = "EXTREME"  // >= 30
	VolatilityUnknown  VolatilityLevel = "UNKNOWN"
)

// VolatilityThresholds holds the upper bounds of the LOW..HIGH buckets.
type VolatilityThresholds struct {
	Low      float64
	Normal   float64
	Elevated float64
	High     float64
}

// DefaultVolatilityThresholds returns the 15/20/25/30 bucket bounds.
func DefaultVolatilityThresholds() VolatilityThresholds {
	return VolatilityThresholds{Low: 15, Normal: 20, Elevated: 25, High: 30}
}

// Level buckets a volatility reading. A nil reading is UNKNOWN.
func (t VolatilityThresholds) Level(v *float64) VolatilityLevel {
	if v == nil {
		return VolatilityUnknown
	}
	switch {
	case *v < t.Low:
		return VolatilityLow
	case *v < t.Normal:
		return VolatilityNormal
	case *v < t.Elevated:
		return VolatilityElevated
	case *v < t.High:
		return VolatilityHigh
	default:
		return VolatilityExtreme
	}
}

// Candle represents OHLCV data for one trading day.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

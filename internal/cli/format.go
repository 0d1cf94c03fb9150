package cli

import (
	"fmt"
	"time"

	"trade-journal/internal/models"
)

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if price != 0 && price < 1 && price > -1 {
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatOptionalPrice formats a price that may be absent.
func FormatOptionalPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return FormatPrice(*v)
}

// FormatDate formats a calendar date.
func FormatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = models.DateLayout
	}
	return t.Format(layout)
}

// FormatOptionalDate formats a date that may be absent.
func FormatOptionalDate(t *time.Time, layout string) string {
	if t == nil {
		return "-"
	}
	return FormatDate(*t, layout)
}

// ShortID returns the leading characters of a record ID, enough to be
// accepted back as a prefix.
func ShortID(id models.RecordID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// TruncateString shortens s to max runes, marking the cut with "...".
func TruncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

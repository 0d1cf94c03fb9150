package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"trade-journal/internal/models"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{180, "180.00"},
		{4.256, "4.26"},
		{0.1234, "0.1234"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatOptionalPrice(nil); got != "-" {
		t.Errorf("FormatOptionalPrice(nil) = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(d, ""); got != "2024-03-01" {
		t.Errorf("FormatDate default layout = %q", got)
	}
	if got := FormatDate(d, "02-Jan-2006"); got != "01-Mar-2024" {
		t.Errorf("FormatDate custom layout = %q", got)
	}
	if got := FormatDate(time.Time{}, ""); got != "-" {
		t.Errorf("FormatDate zero = %q", got)
	}
	if got := FormatOptionalDate(nil, ""); got != "-" {
		t.Errorf("FormatOptionalDate(nil) = %q", got)
	}
}

func TestShortID(t *testing.T) {
	id := models.RecordID("0b6f3c2e-8f1a-4d7e-9c55-2a1b3c4d5e6f")
	if got := ShortID(id); got != "0b6f3c2e" {
		t.Errorf("ShortID = %q", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID short = %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := TruncateString("hello world", 8); got != "hello..." {
		t.Errorf("got %q", got)
	}
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{writer: &buf}

	table := NewTable(out, "Symbol", "P&L")
	table.AddRow("AAPL", out.FormatPnL(1234.5))
	table.AddRow("TSLA", out.FormatPnL(-20))
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if lines[1] != "------  ----------" {
		t.Errorf("separator = %q", lines[1])
	}
	if !strings.Contains(lines[2], "+$1,234.50") {
		t.Errorf("row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "-$20.00") {
		t.Errorf("row = %q", lines[3])
	}
}

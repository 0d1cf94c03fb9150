package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/journal"
)

// newTestConfigDir writes a config that points the yahoo source at url and
// keeps logging and caching off the test's filesystem.
func newTestConfigDir(t *testing.T, url string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
[market]
source = "yahoo"
yahoo_base_url = %q
fetch_timeout = "2s"
requests_per_second = 0.0

[market.cache]
enabled = false

[logging]
console = false
file = false
`, url)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(nil, zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func notFoundServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionCmd_JSON(t *testing.T) {
	dir := newTestConfigDir(t, "http://127.0.0.1:0")

	out, err := execute(t, "--config", dir, "--json", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != Version {
		t.Errorf("version = %q, want %q", got["version"], Version)
	}
}

func TestConfigPath(t *testing.T) {
	dir := newTestConfigDir(t, "http://127.0.0.1:0")

	out, err := execute(t, "--config", dir, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out) != dir {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), dir)
	}
}

func TestConfigShow_HidesCredentials(t *testing.T) {
	dir := newTestConfigDir(t, "http://127.0.0.1:0")
	t.Setenv("KITE_API_KEY", "secret-key")

	out, err := execute(t, "--config", dir, "--json", "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "secret-key") {
		t.Error("config show leaked credentials")
	}
}

func TestLogListStats_WithoutMarketData(t *testing.T) {
	srv := notFoundServer(t)
	dir := newTestConfigDir(t, srv.URL)

	out, err := execute(t, "--config", dir, "--json", "log",
		"--symbol", "aapl", "--direction", "long",
		"--entry-date", "2024-03-01", "--entry-price", "100",
		"--exit-date", "2024-03-05", "--exit-price", "110",
		"--qty", "10")
	if err != nil {
		t.Fatalf("log error = %v", err)
	}

	var logged struct {
		ID      string `json:"id"`
		Warning string `json:"warning"`
	}
	if err := json.Unmarshal([]byte(out), &logged); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if logged.ID == "" {
		t.Fatal("log returned no id")
	}
	if logged.Warning == "" {
		t.Error("expected a warning about unavailable market context")
	}

	out, err = execute(t, "--config", dir, "--json", "list", "--no-refresh")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var views []journal.TradeView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(views) != 1 {
		t.Fatalf("list returned %d trades, want 1", len(views))
	}
	if views[0].Record.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", views[0].Record.Symbol)
	}
	if views[0].Record.EntryVolatility != nil {
		t.Error("volatility should be empty when market data is unavailable")
	}
	if views[0].PnL == nil || *views[0].PnL != 100 {
		t.Errorf("pnl = %v, want 100", views[0].PnL)
	}

	out, err = execute(t, "--config", dir, "--json", "stats", "--no-refresh", "--group-by", "regime")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var stats struct {
		WinRates []struct {
			Key   string `json:"key"`
			Wins  int    `json:"wins"`
			Count int    `json:"count"`
		} `json:"win_rates"`
		Summary struct {
			ClosedTrades int     `json:"closed_trades"`
			NetPnL       float64 `json:"net_pnl"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	total := 0
	for _, g := range stats.WinRates {
		total += g.Count
	}
	if total != 1 {
		t.Errorf("win rate groups cover %d trades, want 1", total)
	}
	if stats.Summary.ClosedTrades != 1 || stats.Summary.NetPnL != 100 {
		t.Errorf("summary = %+v", stats.Summary)
	}

	out, err = execute(t, "--config", dir, "--json", "show", logged.ID[:8])
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	var view journal.TradeView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if string(view.Record.ID) != logged.ID {
		t.Errorf("show resolved %s, want %s", view.Record.ID, logged.ID)
	}
}

func TestLog_RejectsInvalidTrade(t *testing.T) {
	srv := notFoundServer(t)
	dir := newTestConfigDir(t, srv.URL)

	_, err := execute(t, "--config", dir, "log",
		"--symbol", "AAPL", "--entry-date", "2024-03-01",
		"--entry-price", "100", "--qty", "0")
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	if _, statErr := os.Stat(filepath.Join(dir, "trading_journal.csv")); statErr == nil {
		t.Error("rejected trade should not create the journal")
	}
}

func TestLog_RejectsUnknownDirection(t *testing.T) {
	dir := newTestConfigDir(t, "http://127.0.0.1:0")

	_, err := execute(t, "--config", dir, "log",
		"--symbol", "AAPL", "--direction", "sideways",
		"--entry-price", "100", "--qty", "1")
	if err == nil || !strings.Contains(err.Error(), "direction") {
		t.Fatalf("err = %v, want direction error", err)
	}
}

func TestStats_RejectsUnknownGrouping(t *testing.T) {
	dir := newTestConfigDir(t, "http://127.0.0.1:0")

	_, err := execute(t, "--config", dir, "stats", "--group-by", "sector")
	if err == nil {
		t.Fatal("expected error for unknown grouping")
	}
}

func TestCurve_Empty(t *testing.T) {
	dir := newTestConfigDir(t, "http://127.0.0.1:0")

	out, err := execute(t, "--config", dir, "curve")
	if err != nil {
		t.Fatalf("curve error = %v", err)
	}
	if !strings.Contains(out, "No closed trades") {
		t.Errorf("output = %q", out)
	}
}

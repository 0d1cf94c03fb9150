package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "trade-journal/internal/errors"
)

func TestLoad_CreatesTemplatesAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be created: %v", name, err)
		}
	}

	if cfg.Market.Source != "yahoo" {
		t.Errorf("Market.Source = %q, want yahoo", cfg.Market.Source)
	}
	if cfg.Market.FetchTimeout != 10*time.Second {
		t.Errorf("Market.FetchTimeout = %v, want 10s", cfg.Market.FetchTimeout)
	}
	if cfg.Regime.Window != 200 || cfg.Regime.LookbackDays != 300 {
		t.Errorf("Regime = %+v, want window 200 lookback 300", cfg.Regime)
	}
	if cfg.Analysis.HorizonDays != 14 {
		t.Errorf("Analysis.HorizonDays = %d, want 14", cfg.Analysis.HorizonDays)
	}
	if cfg.Journal.Path != filepath.Join(dir, "trading_journal.csv") {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.Market.Cache.Path != filepath.Join(dir, "market.db") {
		t.Errorf("Market.Cache.Path = %q", cfg.Market.Cache.Path)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[journal]
path = "/tmp/custom.csv"

[regime]
window = 50
lookback_days = 90

[analysis]
horizon_days = 5
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Journal.Path != "/tmp/custom.csv" {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.Regime.Window != 50 || cfg.Regime.LookbackDays != 90 {
		t.Errorf("Regime = %+v", cfg.Regime)
	}
	if cfg.Analysis.HorizonDays != 5 {
		t.Errorf("HorizonDays = %d, want 5", cfg.Analysis.HorizonDays)
	}
	// untouched keys keep their defaults
	if cfg.Market.BenchmarkSymbol != "SPY" {
		t.Errorf("BenchmarkSymbol = %q, want SPY", cfg.Market.BenchmarkSymbol)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JOURNAL_PATH", "/data/journal.csv")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Journal.Path != "/data/journal.csv" {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestRegimeConfig_MinLookbackDays(t *testing.T) {
	tests := []struct {
		window, want int
	}{
		{200, 293},
		{50, 75},
		{2, 6},
	}
	for _, tt := range tests {
		if got := (RegimeConfig{Window: tt.window}).MinLookbackDays(); got != tt.want {
			t.Errorf("MinLookbackDays(window=%d) = %d, want %d", tt.window, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"unknown source", func(c *Config) { c.Market.Source = "bloomberg" }, false},
		{"kite without credentials", func(c *Config) { c.Market.Source = "kite" }, false},
		{"kite with credentials", func(c *Config) {
			c.Market.Source = "kite"
			c.Credentials.Kite.APIKey = "key"
			c.Credentials.Kite.AccessToken = "token"
		}, true},
		{"window too small", func(c *Config) { c.Regime.Window = 1 }, false},
		{"lookback shorter than window", func(c *Config) { c.Regime.LookbackDays = 100 }, false},
		{"lookback equal to window in trading days", func(c *Config) { c.Regime.LookbackDays = 200 }, false},
		{"lookback just short of window", func(c *Config) { c.Regime.LookbackDays = 292 }, false},
		{"lookback at minimum", func(c *Config) { c.Regime.LookbackDays = 293 }, true},
		{"zero horizon", func(c *Config) { c.Analysis.HorizonDays = 0 }, false},
		{"zero timeout", func(c *Config) { c.Market.FetchTimeout = 0 }, false},
		{"descending volatility buckets", func(c *Config) { c.Regime.VolatilityLow = 40 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok {
				if err == nil {
					t.Error("Validate() = nil, want error")
				} else if !errors.Is(err, apperrors.ErrConfigInvalid) {
					t.Errorf("Validate() = %v, want ErrConfigInvalid", err)
				}
			}
		})
	}
}

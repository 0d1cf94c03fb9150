package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Journal Configuration

[journal]
# Trade log (CSV). Empty means <config dir>/trading_journal.csv
path = ""

[market]
# Market data source: "yahoo" or "kite"
source = "yahoo"
# Indicators folded into every logged trade
volatility_symbol = "^VIX"
benchmark_symbol = "SPY"
rate_symbol = "^TNX"
# Timeout for each market data request (e.g., "10s")
fetch_timeout = "10s"
# Calendar days searched back for the most recent trading day
fallback_days = 7
# Request rate limit towards the market data API
requests_per_second = 2.0
# Stop calling the API after this many consecutive failures (0 disables)
breaker_failures = 3
# How long to wait before trying the API again
breaker_cooldown = "1m"

# Instrument tokens used by the kite source
[market.kite_instruments]
# "INDIA VIX" = 264969
# "NIFTY 50" = 256265

[market.cache]
# Cache daily bars in a local SQLite database
enabled = true
path = ""
max_age = "12h"

[regime]
# Benchmark is Bull when close / SMA(window) - 1 > threshold
window = 200
threshold = 0.0
# Calendar days of benchmark history fetched for the SMA; needs about
# window * 7/5 plus holidays (293 for a 200-day window)
lookback_days = 300
# Volatility index buckets
volatility_low = 15.0
volatility_normal = 20.0
volatility_elevated = 25.0
volatility_high = 30.0

[analysis]
# Days after exit at which the counter-factual price is taken
horizon_days = 14
# Days searched forward when the horizon falls on a non-trading day
price_buffer_days = 4

[logging]
level = "info"
console = true
file = true
file_path = ""
max_size = 10
max_backups = 5
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"
`

const credentialsTemplate = `# Trade Journal Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
access_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}

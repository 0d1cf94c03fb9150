// Package config provides configuration management for the trade journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Journal     JournalConfig  `mapstructure:"journal"`
	Market      MarketConfig   `mapstructure:"market"`
	Regime      RegimeConfig   `mapstructure:"regime"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	UI          UIConfig       `mapstructure:"ui"`
	Credentials Credentials    `mapstructure:"-" json:"-"` // Loaded separately
	Dir         string         `mapstructure:"-" json:"dir"`
}

// JournalConfig holds trade store configuration.
type JournalConfig struct {
	Path string `mapstructure:"path"` // CSV file, defaults to <config dir>/trading_journal.csv
}

// MarketConfig holds market data configuration.
type MarketConfig struct {
	Source            string         `mapstructure:"source"` // "yahoo", "kite"
	VolatilitySymbol  string         `mapstructure:"volatility_symbol"`
	BenchmarkSymbol   string         `mapstructure:"benchmark_symbol"`
	RateSymbol        string         `mapstructure:"rate_symbol"`
	FetchTimeout      time.Duration  `mapstructure:"fetch_timeout"`
	FallbackDays      int            `mapstructure:"fallback_days"` // calendar days searched back for a prior trading day
	RequestsPerSecond float64        `mapstructure:"requests_per_second"`
	YahooBaseURL      string         `mapstructure:"yahoo_base_url"`
	KiteInstruments   map[string]int `mapstructure:"kite_instruments"` // symbol -> instrument token
	BreakerFailures   int            `mapstructure:"breaker_failures"` // consecutive failures before upstream calls stop, 0 disables
	BreakerCooldown   time.Duration  `mapstructure:"breaker_cooldown"`
	Cache             CacheConfig    `mapstructure:"cache"`
}

// CacheConfig holds the daily-bar cache configuration.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	MaxAge  time.Duration `mapstructure:"max_age"` // how long the newest cached bar stays fresh
}

// RegimeConfig holds the regime classification constants.
type RegimeConfig struct {
	Window       int     `mapstructure:"window"`        // SMA length in trading days
	Threshold    float64 `mapstructure:"threshold"`     // trend above this is Bull
	LookbackDays int     `mapstructure:"lookback_days"` // calendar days of benchmark history fetched

	VolatilityLow      float64 `mapstructure:"volatility_low"`
	VolatilityNormal   float64 `mapstructure:"volatility_normal"`
	VolatilityElevated float64 `mapstructure:"volatility_elevated"`
	VolatilityHigh     float64 `mapstructure:"volatility_high"`
}

// MinLookbackDays returns the calendar days needed to see Window trading
// days: five sessions per seven days, plus about one holiday per twenty
// sessions and a few days for the week boundary.
func (r RegimeConfig) MinLookbackDays() int {
	return (r.Window*7+4)/5 + r.Window/20 + 3
}

// AnalysisConfig holds counter-factual analysis configuration.
type AnalysisConfig struct {
	HorizonDays     int `mapstructure:"horizon_days"`
	PriceBufferDays int `mapstructure:"price_buffer_days"` // days searched forward when the horizon lands on a holiday
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trade-journal"
	}
	return filepath.Join(home, ".config", "trade-journal")
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.Dir = configDir
	cfg.resolvePaths()
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("journal.path", "")

	v.SetDefault("market.source", "yahoo")
	v.SetDefault("market.volatility_symbol", "^VIX")
	v.SetDefault("market.benchmark_symbol", "SPY")
	v.SetDefault("market.rate_symbol", "^TNX")
	v.SetDefault("market.fetch_timeout", "10s")
	v.SetDefault("market.fallback_days", 7)
	v.SetDefault("market.requests_per_second", 2.0)
	v.SetDefault("market.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.breaker_failures", 3)
	v.SetDefault("market.breaker_cooldown", "1m")
	v.SetDefault("market.cache.enabled", true)
	v.SetDefault("market.cache.path", "")
	v.SetDefault("market.cache.max_age", "12h")

	v.SetDefault("regime.window", 200)
	v.SetDefault("regime.threshold", 0.0)
	v.SetDefault("regime.lookback_days", 300)
	v.SetDefault("regime.volatility_low", 15.0)
	v.SetDefault("regime.volatility_normal", 20.0)
	v.SetDefault("regime.volatility_elevated", 25.0)
	v.SetDefault("regime.volatility_high", 30.0)

	v.SetDefault("analysis.horizon_days", 14)
	v.SetDefault("analysis.price_buffer_days", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and carry on with defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("MARKET_SOURCE"); v != "" {
		cfg.Market.Source = v
	}

	// Kite credentials
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// resolvePaths fills empty file locations relative to the config directory.
func (c *Config) resolvePaths() {
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.Dir, "trading_journal.csv")
	}
	if c.Market.Cache.Path == "" {
		c.Market.Cache.Path = filepath.Join(c.Dir, "market.db")
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Dir, "logs", "journal.log")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Journal.Path == "" {
		return fmt.Errorf("%w: journal.path must be set", apperrors.ErrConfigInvalid)
	}

	switch c.Market.Source {
	case "yahoo":
	case "kite":
		if c.Credentials.Kite.APIKey == "" || c.Credentials.Kite.AccessToken == "" {
			return fmt.Errorf("%w: kite source requires api_key and access_token", apperrors.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid market source: %s (must be 'yahoo' or 'kite')", apperrors.ErrConfigInvalid, c.Market.Source)
	}
	if c.Market.BenchmarkSymbol == "" {
		return fmt.Errorf("%w: market.benchmark_symbol must be set", apperrors.ErrConfigInvalid)
	}
	if c.Market.FetchTimeout <= 0 {
		return fmt.Errorf("%w: market.fetch_timeout must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Market.BreakerFailures < 0 {
		return fmt.Errorf("%w: market.breaker_failures must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Market.FallbackDays < 1 {
		return fmt.Errorf("%w: market.fallback_days must be at least 1", apperrors.ErrConfigInvalid)
	}

	// Regime constants
	if c.Regime.Window < 2 {
		return fmt.Errorf("%w: regime.window must be at least 2", apperrors.ErrConfigInvalid)
	}
	if need := c.Regime.MinLookbackDays(); c.Regime.LookbackDays < need {
		return fmt.Errorf("%w: regime.lookback_days (%d) must be at least %d calendar days to cover regime.window (%d trading days)",
			apperrors.ErrConfigInvalid, c.Regime.LookbackDays, need, c.Regime.Window)
	}
	if !(c.Regime.VolatilityLow <= c.Regime.VolatilityNormal &&
		c.Regime.VolatilityNormal <= c.Regime.VolatilityElevated &&
		c.Regime.VolatilityElevated <= c.Regime.VolatilityHigh) {
		return fmt.Errorf("%w: volatility thresholds must be ascending", apperrors.ErrConfigInvalid)
	}

	if c.Analysis.HorizonDays < 1 {
		return fmt.Errorf("%w: analysis.horizon_days must be at least 1", apperrors.ErrConfigInvalid)
	}
	if c.Analysis.PriceBufferDays < 0 {
		return fmt.Errorf("%w: analysis.price_buffer_days must be non-negative", apperrors.ErrConfigInvalid)
	}

	return nil
}

// VolatilityThresholds returns the configured volatility bucket bounds.
func (c *Config) VolatilityThresholds() models.VolatilityThresholds {
	return models.VolatilityThresholds{
		Low:      c.Regime.VolatilityLow,
		Normal:   c.Regime.VolatilityNormal,
		Elevated: c.Regime.VolatilityElevated,
		High:     c.Regime.VolatilityHigh,
	}
}

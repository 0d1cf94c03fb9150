// Package cli provides the command-line interface for the trade journal.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trade-journal/internal/analysis"
	"trade-journal/internal/config"
	"trade-journal/internal/enrich"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/journal"
	"trade-journal/internal/logging"
	"trade-journal/internal/marketdata"
	"trade-journal/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.TradeStore
	Cache   store.CandleCache
	Journal *journal.Service
}

// NewRootCmd creates the root command for the CLI. When cfg is nil the
// configuration is loaded from --config before any subcommand runs and the
// logger is rebuilt from it.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "journal",
		Short: "Trade journal with market context and counter-factual analysis",
		Long: `Trade journal records your trades together with the market context at
entry (volatility index, trend regime, interest rate), checks later what the
price did after you exited, and summarizes performance by regime.

Use 'journal <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.Logger = logging.NewLoggerWithConfig(logging.FromConfig(loaded.Logging))
			}

			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trade-journal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

// Service opens the store, cache and market data source on first use and
// returns the journal service built on them.
func (a *App) Service() (*journal.Service, error) {
	if a.Journal != nil {
		return a.Journal, nil
	}
	cfg := a.Config

	tradeStore, err := store.NewCSVStore(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	a.Store = tradeStore

	if cfg.Market.Cache.Enabled {
		cache, err := store.NewSQLiteCandleCache(cfg.Market.Cache.Path)
		if err != nil {
			// The journal still works against the live source
			a.Logger.Warn().Err(err).Msg("Failed to open bar cache, continuing without it")
		} else {
			a.Cache = cache
			a.Logger.Debug().Str("path", cfg.Market.Cache.Path).Msg("SQLite bar cache initialized")
		}
	}

	source, err := marketdata.NewSource(cfg, a.Cache, a.Logger)
	if err != nil {
		return nil, err
	}

	fetcher := enrich.NewFetcher(source, enrich.SettingsFromConfig(cfg), a.Logger)
	analyzer := analysis.NewAnalyzer(source, tradeStore, analysis.AnalyzerConfig{
		HorizonDays:     cfg.Analysis.HorizonDays,
		PriceBufferDays: cfg.Analysis.PriceBufferDays,
		Timeout:         cfg.Market.FetchTimeout,
	}, a.Logger)

	a.Journal = journal.NewService(tradeStore, fetcher, analyzer, cfg.VolatilityThresholds(), a.Logger)
	a.Logger.Debug().Str("source", source.Name()).Str("journal", tradeStore.Path()).Msg("Journal service initialized")
	return a.Journal, nil
}

// Close releases the store and cache.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	a.Store, a.Cache, a.Journal = nil, nil, nil
	return apperrors.Join(errs...)
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Trade Journal v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Journal")
	output.Printf("  Path:             %s\n", cfg.Journal.Path)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Source:           %s\n", cfg.Market.Source)
	output.Printf("  Volatility:       %s\n", cfg.Market.VolatilitySymbol)
	output.Printf("  Benchmark:        %s\n", cfg.Market.BenchmarkSymbol)
	output.Printf("  Rate:             %s\n", cfg.Market.RateSymbol)
	output.Printf("  Fetch Timeout:    %s\n", cfg.Market.FetchTimeout)
	output.Printf("  Fallback Days:    %d\n", cfg.Market.FallbackDays)
	output.Printf("  Cache:            %v (%s, max age %s)\n", cfg.Market.Cache.Enabled, cfg.Market.Cache.Path, cfg.Market.Cache.MaxAge)
	output.Println()

	output.Bold("Regime")
	output.Printf("  SMA Window:       %d\n", cfg.Regime.Window)
	output.Printf("  Threshold:        %.4f\n", cfg.Regime.Threshold)
	output.Printf("  Lookback Days:    %d\n", cfg.Regime.LookbackDays)
	output.Printf("  Volatility Bands: %.0f / %.0f / %.0f / %.0f\n",
		cfg.Regime.VolatilityLow, cfg.Regime.VolatilityNormal, cfg.Regime.VolatilityElevated, cfg.Regime.VolatilityHigh)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Horizon:          %d days\n", cfg.Analysis.HorizonDays)
	output.Printf("  Price Buffer:     %d days\n", cfg.Analysis.PriceBufferDays)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  File:             %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)
}

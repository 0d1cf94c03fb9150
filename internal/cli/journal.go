package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trade-journal/internal/analysis"
	"trade-journal/internal/config"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/journal"
	"trade-journal/internal/models"
	"trade-journal/pkg/utils"
)

// commandTimeout bounds a whole command, including every upstream call.
const commandTimeout = 60 * time.Second

// addJournalCommands adds the trade journal commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLogCmd(app))
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newShowCmd(app))
	rootCmd.AddCommand(newBackfillCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newCurveCmd(app))
	rootCmd.AddCommand(newContextCmd(app))
	rootCmd.AddCommand(newOpenCmd(app))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, commandTimeout)
}

func parseDateArg(s string) (time.Time, error) {
	if s == "" || strings.EqualFold(s, "today") {
		return utils.Today(), nil
	}
	return models.ParseDate(s)
}

func newLogCmd(app *App) *cobra.Command {
	var (
		symbol     string
		direction  string
		entryDate  string
		entryPrice float64
		exitDate   string
		exitPrice  float64
		quantity   int
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a trade with its market context",
		Long: `Log a trade. The volatility index, trend regime and interest rate as of the
entry date are looked up and stored with the trade. If some of that context
cannot be fetched the trade is still logged and the missing fields are left empty.`,
		Example: `  journal log --symbol AAPL --direction long --entry-date 2024-03-01 --entry-price 180 --qty 10
  journal log --symbol TSLA --direction short --entry-date 2024-03-01 --entry-price 200 \
      --exit-date 2024-03-08 --exit-price 185 --qty 5 --notes "faded the gap"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			dir, err := models.ParseDirection(direction)
			if err != nil {
				return err
			}
			entry := models.TradeEntry{
				Symbol:     symbol,
				Direction:  dir,
				EntryPrice: entryPrice,
				Quantity:   quantity,
				Notes:      notes,
			}
			if entry.EntryDate, err = parseDateArg(entryDate); err != nil {
				return err
			}
			if exitDate != "" {
				d, err := models.ParseDate(exitDate)
				if err != nil {
					return err
				}
				entry.ExitDate = &d
			}
			if cmd.Flags().Changed("exit-price") {
				entry.ExitPrice = models.Float(exitPrice)
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if utils.IsWeekend(entry.EntryDate) && !output.IsJSON() {
				output.Dim("Entry date is a weekend; context is taken from the prior trading day.")
			}
			result, err := svc.LogTrade(ctx, entry)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				warning := ""
				if result.Warning != nil {
					warning = result.Warning.Error()
				}
				return output.JSON(struct {
					journal.LogResult
					Warning string `json:"warning,omitempty"`
				}{result, warning})
			}

			rec := result.Record
			output.Success("Logged %s %s x%d @ %s (id %s)", strings.ToUpper(string(rec.Direction)), rec.Symbol, rec.Quantity, FormatPrice(rec.EntryPrice), rec.ID)
			printSnapshot(output, result.Snapshot, app.Config)
			if result.Warning != nil {
				output.Warning("Some market context was unavailable: %v", result.Warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "ticker symbol")
	cmd.Flags().StringVarP(&direction, "direction", "d", "long", "long or short")
	cmd.Flags().StringVar(&entryDate, "entry-date", "", "entry date YYYY-MM-DD (default: today)")
	cmd.Flags().Float64Var(&entryPrice, "entry-price", 0, "entry price")
	cmd.Flags().StringVar(&exitDate, "exit-date", "", "exit date YYYY-MM-DD")
	cmd.Flags().Float64Var(&exitPrice, "exit-price", 0, "exit price")
	cmd.Flags().IntVarP(&quantity, "qty", "q", 0, "number of shares")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("entry-price")
	_ = cmd.MarkFlagRequired("qty")

	return cmd
}

// refresh backfills eligible trades before a view. Upstream failures only
// warn; the view is rendered from whatever is stored.
func refresh(ctx context.Context, app *App, svc *journal.Service, output *Output) {
	report, err := svc.Refresh(ctx)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Refresh failed")
		if !output.IsJSON() {
			output.Warning("Could not refresh post-exit prices: %v", err)
		}
		return
	}
	if report.Skipped > 0 && !output.IsJSON() {
		output.Warning("%d trade(s) could not be backfilled yet; they will be retried", report.Skipped)
	}
}

func newListCmd(app *App) *cobra.Command {
	var (
		noRefresh bool
		status    string
		symbol    string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List journaled trades",
		Long:    "List trades with realized P&L and, once the horizon has passed, the gain missed by exiting.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if !noRefresh {
				refresh(ctx, app, svc, output)
			}

			dash, err := svc.Dashboard(ctx, analysis.GroupNone)
			if err != nil {
				return err
			}

			views := filterViews(dash.Trades, analysis.Status(strings.ToLower(status)), strings.ToUpper(symbol))
			if output.IsJSON() {
				return output.JSON(views)
			}

			if len(views) == 0 {
				output.Info("No trades found.")
				return nil
			}

			layout := app.Config.UI.DateFormat
			table := NewTable(output, "ID", "Symbol", "Side", "Qty", "Entry", "Entry Price", "Exit", "Exit Price", "Regime", "Vol", "P&L", "Missed", "Status", "Notes")
			for _, v := range views {
				r := v.Record
				table.AddRow(
					ShortID(r.ID),
					r.Symbol,
					string(r.Direction),
					utils.FormatQuantity(int64(r.Quantity)),
					FormatDate(r.EntryDate, layout),
					FormatPrice(r.EntryPrice),
					FormatOptionalDate(r.ExitDate, layout),
					FormatOptionalPrice(r.ExitPrice),
					r.EntryRegime.Label(),
					FormatOptionalPrice(r.EntryVolatility),
					output.OptionalPnL(v.PnL),
					output.OptionalPnL(v.MissedGain),
					string(v.Status),
					TruncateString(r.Notes, 24),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "skip backfilling post-exit prices")
	cmd.Flags().StringVar(&status, "status", "", "only show trades with this status (open, awaiting, pending, backfilled)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "only show trades for this symbol")

	return cmd
}

func filterViews(views []journal.TradeView, status analysis.Status, symbol string) []journal.TradeView {
	out := make([]journal.TradeView, 0, len(views))
	for _, v := range views {
		if status != "" && v.Status != status {
			continue
		}
		if symbol != "" && v.Record.Symbol != symbol {
			continue
		}
		out = append(out, v)
	}
	return out
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one trade in detail",
		Long:  "Show one trade. The id may be abbreviated to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			v, err := svc.Trade(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(v)
			}

			layout := app.Config.UI.DateFormat
			r := v.Record
			output.Bold("%s %s x%d", r.Symbol, strings.ToUpper(string(r.Direction)), r.Quantity)
			output.Printf("  ID:           %s\n", r.ID)
			output.Printf("  Status:       %s\n", v.Status)
			output.Printf("  Entry:        %s @ %s\n", FormatDate(r.EntryDate, layout), FormatPrice(r.EntryPrice))
			output.Printf("  Exit:         %s @ %s\n", FormatOptionalDate(r.ExitDate, layout), FormatOptionalPrice(r.ExitPrice))
			output.Printf("  P&L:          %s (%s)\n", output.OptionalPnL(v.PnL), output.OptionalPercent(v.ReturnPercent))
			output.Println()

			output.Bold("Context at entry")
			output.Printf("  Regime:       %s\n", r.EntryRegime.Label())
			output.Printf("  Volatility:   %s (%s)\n", FormatOptionalPrice(r.EntryVolatility), v.Volatility)
			output.Printf("  Rate:         %s\n", FormatOptionalPrice(r.EntryRate))
			output.Println()

			output.Bold("After exit")
			horizon := FormatOptionalDate(v.HorizonDate, layout)
			if v.Status == analysis.StatusAwaiting && v.HorizonDate != nil {
				if days := utils.DaysBetween(utils.Today(), *v.HorizonDate); days > 0 {
					horizon += fmt.Sprintf(" (in %d days)", days)
				} else {
					horizon += " (after today's close)"
				}
			}
			output.Printf("  Horizon:      %s\n", horizon)
			output.Printf("  Price:        %s\n", FormatOptionalPrice(r.PostExitPrice))
			output.Printf("  Missed gain:  %s (%s)\n", output.OptionalPnL(v.MissedGain), output.OptionalPercent(v.MissedGainPercent))

			if r.Notes != "" {
				output.Println()
				output.Bold("Notes")
				output.Printf("  %s\n", r.Notes)
			}
			return nil
		},
	}
}

func newBackfillCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Fill in post-exit prices for trades past their horizon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			report, err := svc.Refresh(ctx)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				errs := make([]string, 0, len(report.Errors))
				for _, e := range report.Errors {
					errs = append(errs, e.Error())
				}
				return output.JSON(struct {
					analysis.BackfillReport
					Errors []string `json:"errors,omitempty"`
				}{report, errs})
			}

			output.Success("Backfilled %d trade(s)", report.Backfilled)
			output.Printf("  Awaiting horizon: %d\n", report.Awaiting)
			output.Printf("  Already done:     %d\n", report.AlreadyDone)
			output.Printf("  Open:             %d\n", report.Open)
			if report.Skipped > 0 {
				output.Warning("Skipped %d trade(s):", report.Skipped)
				for _, e := range report.Errors {
					output.Dim("  %v", e)
				}
			}
			return nil
		},
	}
}

func newStatsCmd(app *App) *cobra.Command {
	var (
		groupBy   string
		noRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show win rates and performance summary",
		Long: `Show the win rate of closed trades grouped by the regime (or volatility level)
at entry, followed by overall performance. A win is a strictly positive realized P&L.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			group, err := analysis.ParseGroupBy(groupBy)
			if err != nil {
				return err
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if !noRefresh {
				refresh(ctx, app, svc, output)
			}

			dash, err := svc.Dashboard(ctx, group)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(struct {
					GroupBy  analysis.GroupBy        `json:"group_by"`
					WinRates []analysis.WinRateGroup `json:"win_rates"`
					Summary  analysis.Summary        `json:"summary"`
				}{dash.GroupBy, dash.WinRates, dash.Summary})
			}

			output.Bold("Win Rate by %s", group)
			table := NewTable(output, "Group", "Wins", "Trades", "Win Rate")
			for _, g := range dash.WinRates {
				rate := "n/a"
				if r, ok := g.Ratio(); ok {
					rate = fmt.Sprintf("%.1f%%", r*100)
				}
				table.AddRow(g.Key, fmt.Sprintf("%d", g.Wins), fmt.Sprintf("%d", g.Count), rate)
			}
			table.Render()
			output.Println()

			s := dash.Summary
			output.Bold("Summary")
			output.Printf("  Trades:         %d (%d closed, %d open)\n", s.TotalTrades, s.ClosedTrades, s.OpenTrades)
			output.Printf("  Wins / Losses:  %d / %d\n", s.Wins, s.Losses)
			output.Printf("  Net P&L:        %s\n", output.FormatPnL(s.NetPnL))
			output.Printf("  Gross Profit:   %s\n", utils.FormatCurrency(s.GrossProfit))
			output.Printf("  Gross Loss:     %s\n", utils.FormatCurrency(s.GrossLoss))
			output.Printf("  Profit Factor:  %.2f\n", s.ProfitFactor)
			output.Printf("  Avg Win:        %s\n", utils.FormatCurrency(s.AvgWin))
			output.Printf("  Avg Loss:       %s\n", utils.FormatCurrency(s.AvgLoss))
			output.Printf("  Largest Win:    %s\n", utils.FormatCurrency(s.LargestWin))
			output.Printf("  Largest Loss:   %s\n", utils.FormatCurrency(s.LargestLoss))
			output.Printf("  Expectancy:     %s\n", output.FormatPnL(s.Expectancy))
			output.Printf("  Avg Return:     %s\n", output.FormatPercent(s.AvgReturnPct))
			return nil
		},
	}

	cmd.Flags().StringVarP(&groupBy, "group-by", "g", string(analysis.GroupRegime), "grouping: none, regime or volatility")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "skip backfilling post-exit prices")

	return cmd
}

func newCurveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "curve",
		Short: "Show the cumulative P&L curve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			dash, err := svc.Dashboard(ctx, analysis.GroupNone)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(dash.Equity)
			}

			if len(dash.Equity) == 0 {
				output.Info("No closed trades yet.")
				return nil
			}

			layout := app.Config.UI.DateFormat
			table := NewTable(output, "Exit", "ID", "Symbol", "P&L", "Cumulative")
			for _, p := range dash.Equity {
				table.AddRow(
					FormatDate(p.Date, layout),
					ShortID(p.TradeID),
					p.Symbol,
					output.FormatPnL(p.PnL),
					output.FormatPnL(p.Cumulative),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newContextCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "context [date]",
		Short: "Show the market context for a date",
		Long:  "Show the volatility index, trend regime and interest rate as of a date (default: today).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var dateArg string
			if len(args) == 1 {
				dateArg = args[0]
			}
			date, err := parseDateArg(dateArg)
			if err != nil {
				return err
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			snap, err := svc.Context(ctx, date)
			if err != nil && !apperrors.IsDataUnavailable(err) {
				return err
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}
			printSnapshot(output, snap, app.Config)
			if err != nil {
				output.Warning("Some market context was unavailable: %v", err)
			}
			return nil
		},
	}
}

func printSnapshot(output *Output, snap models.MarketSnapshot, cfg *config.Config) {
	layout := cfg.UI.DateFormat
	asOf := FormatDate(snap.AsOf, layout)
	if !snap.AsOf.IsZero() && !snap.AsOf.Equal(snap.Date) {
		asOf += output.Yellow(" (prior trading day)")
	}
	output.Bold("Market context for %s", FormatDate(snap.Date, layout))
	output.Printf("  As of:        %s\n", asOf)
	output.Printf("  Regime:       %s\n", regimeString(output, snap.Regime))
	output.Printf("  Benchmark:    %s\n", FormatOptionalPrice(snap.BenchmarkClose))
	if snap.Trend != nil {
		output.Printf("  Trend:        %s\n", output.FormatPercent(*snap.Trend*100))
	}
	output.Printf("  Volatility:   %s (%s)\n", FormatOptionalPrice(snap.Volatility), cfg.VolatilityThresholds().Level(snap.Volatility))
	output.Printf("  Rate:         %s\n", FormatOptionalPrice(snap.Rate))
}

func regimeString(output *Output, r models.Regime) string {
	switch r {
	case models.RegimeBull:
		return output.Green(r.Label())
	case models.RegimeBear:
		return output.Red(r.Label())
	default:
		return output.Yellow(r.Label())
	}
}

func newOpenCmd(app *App) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Show open trades marked to market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			date, err := parseDateArg(asOf)
			if err != nil {
				return err
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			positions, err := svc.OpenPositions(ctx, date)
			if err != nil && positions == nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(positions)
			}

			if len(positions) == 0 {
				output.Info("No open trades.")
				return nil
			}

			layout := app.Config.UI.DateFormat
			total := 0.0
			table := NewTable(output, "ID", "Symbol", "Side", "Qty", "Entry", "Last", "As Of", "Unrealized", "Return")
			for _, p := range positions {
				r := p.Trade
				lastAsOf := "-"
				if p.LastPrice != nil {
					lastAsOf = FormatDate(p.AsOf, layout)
				}
				if p.UnrealizedPnL != nil {
					total += *p.UnrealizedPnL
				}
				table.AddRow(
					ShortID(r.ID),
					r.Symbol,
					string(r.Direction),
					utils.FormatQuantity(int64(r.Quantity)),
					FormatPrice(r.EntryPrice),
					FormatOptionalPrice(p.LastPrice),
					lastAsOf,
					output.OptionalPnL(p.UnrealizedPnL),
					output.OptionalPercent(p.ReturnPercent),
				)
			}
			table.Render()
			output.Println()
			output.Printf("Total unrealized: %s\n", output.FormatPnL(total))
			if err != nil {
				output.Warning("Some prices were unavailable: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "valuation date YYYY-MM-DD (default: today)")

	return cmd
}

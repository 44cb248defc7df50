package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trade-reconciler/internal/models"
	"trade-reconciler/internal/report"
	"trade-reconciler/internal/store"
)

// storedTrades reads persisted trades using the common filter flags.
func (a *App) storedTrades(cmd *cobra.Command) ([]models.MatchedTrade, error) {
	dataStore, err := a.DataStore()
	if err != nil {
		return nil, err
	}

	filter := store.TradeFilter{}
	filter.Symbol, _ = cmd.Flags().GetString("symbol")
	if cmd.Flags().Lookup("limit") != nil {
		filter.Limit, _ = cmd.Flags().GetInt("limit")
	}
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid --since date %q: %w", since, err)
		}
		filter.StartDate = t
	}

	return dataStore.GetTrades(cmd.Context(), filter)
}

func newTradesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List persisted matched trades",
		Long:  "List matched trades saved by 'process --persist', oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			trades, err := app.storedTrades(cmd)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(tradeViews(trades))
			}
			renderTrades(output, trades, app.Config.UI.DateFormat)
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "only trades of this symbol")
	cmd.Flags().Int("limit", 50, "show at most this many of the latest trades (0 for all)")
	cmd.Flags().String("since", "", "only trades disposed on or after this date (YYYY-MM-DD)")
	return cmd
}

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [fills.csv]",
		Short: "Show performance statistics",
		Long: `Show win rate, P&L and drawdown statistics for matched trades.

With a fills file the trades are matched on the fly; otherwise the
persisted trades are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)

			var trades []models.MatchedTrade
			if len(args) == 1 {
				fills, discipline, err := app.loadFills(cmd, args[0])
				if err != nil {
					return err
				}
				result, err := app.Reconcile(cmd.Context(), fills, RunOptions{Discipline: discipline})
				if err != nil {
					return err
				}
				trades = result.Processor.Trades()
				if symbol, _ := cmd.Flags().GetString("symbol"); symbol != "" {
					trades = result.Processor.TradesFor(symbol)
				}
			} else {
				var err error
				if trades, err = app.storedTrades(cmd); err != nil {
					return err
				}
			}

			stats := report.Calculate(trades)
			if output.IsJSON() {
				return output.JSON(stats)
			}
			renderStats(output, stats)
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "only trades of this symbol")
	cmd.Flags().String("since", "", "only persisted trades disposed on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("discipline", "", "matching discipline when reading a fills file")
	return cmd
}

func renderStats(output *Output, s report.Stats) {
	if s.TotalTrades == 0 {
		output.Info("No matched trades")
		return
	}

	output.Bold("Performance")
	output.Printf("  Trades:         %d (%d won, %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	output.Printf("  Win Rate:       %.1f%%\n", s.WinRate)
	output.Printf("  Net P&L:        %s\n", output.FormatPnL(s.NetPnL))
	output.Printf("  Gross Profit:   %s\n", FormatMoney(s.GrossProfit))
	output.Printf("  Gross Loss:     %s\n", FormatMoney(s.GrossLoss))
	output.Printf("  Avg Win:        %s\n", FormatMoney(s.AvgWin))
	output.Printf("  Avg Loss:       %s\n", FormatMoney(s.AvgLoss))
	output.Printf("  Largest Win:    %s\n", FormatMoney(s.LargestWin))
	output.Printf("  Largest Loss:   %s\n", FormatMoney(s.LargestLoss))
	if s.ProfitFactor > 0 {
		output.Printf("  Profit Factor:  %.2f\n", s.ProfitFactor)
	} else {
		output.Printf("  Profit Factor:  -\n")
	}
	output.Printf("  Expectancy:     %s\n", output.FormatPnL(s.Expectancy))
	output.Printf("  Max Drawdown:   %s\n", FormatMoney(s.MaxDrawdown))
	output.Printf("  Commission:     %s\n", FormatMoney(s.Commission))
	output.Printf("  Avg Holding:    %s\n", FormatDuration(s.AvgHolding))
	output.Println()

	output.Bold("By Symbol")
	table := NewTable(output, "Symbol", "Trades", "Win Rate", "P&L").AlignRight(1, 2, 3)
	for _, b := range s.BySymbol {
		table.AddRow(b.Key, fmt.Sprintf("%d", b.Trades), fmt.Sprintf("%.1f%%", b.WinRate), output.FormatPnL(b.PnL))
	}
	table.Render()
	output.Println()

	output.Bold("By Term")
	table = NewTable(output, "Term", "Trades", "Win Rate", "P&L").AlignRight(1, 2, 3)
	for _, b := range s.ByTerm {
		table.AddRow(b.Key, fmt.Sprintf("%d", b.Trades), fmt.Sprintf("%.1f%%", b.WinRate), output.FormatPnL(b.PnL))
	}
	table.Render()
}

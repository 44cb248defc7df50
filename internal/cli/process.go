package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trade-reconciler/internal/csvio"
	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/ledger"
	"trade-reconciler/internal/models"
)

// output returns an Output honouring the configured colour setting.
func (a *App) output(cmd *cobra.Command) *Output {
	o := NewOutput(cmd)
	if a.Config != nil && !a.Config.UI.ColorEnabled {
		o.SetColor(false)
	}
	return o
}

// loadFills reads a fills CSV and resolves the discipline flag.
func (a *App) loadFills(cmd *cobra.Command, path string) ([]models.Fill, inventory.Discipline, error) {
	discipline := a.Config.Discipline()
	if flag, _ := cmd.Flags().GetString("discipline"); flag != "" {
		d, err := inventory.ParseDiscipline(flag)
		if err != nil {
			return nil, discipline, err
		}
		discipline = d
	}

	loc, err := a.Config.Location()
	if err != nil {
		return nil, discipline, err
	}
	fills, err := csvio.ReadFillsFile(path, loc)
	if err != nil {
		return nil, discipline, err
	}
	return fills, discipline, nil
}

type tradeView struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Quantity         int64           `json:"quantity"`
	DateAcquired     time.Time       `json:"date_acquired"`
	DateDisposed     time.Time       `json:"date_disposed"`
	Proceeds         decimal.Decimal `json:"proceeds"`
	CostOrBasis      decimal.Decimal `json:"cost_basis"`
	AdjustmentAmount decimal.Decimal `json:"adjustment"`
	GainOrLoss       decimal.Decimal `json:"gain_or_loss"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	Commission       decimal.Decimal `json:"commission"`
	Fees             decimal.Decimal `json:"fees"`
	BuyOrderID       int64           `json:"buy_order_id"`
	SellOrderID      int64           `json:"sell_order_id"`
	LongTermGain     bool            `json:"long_term_gain"`
}

func newTradeView(t models.MatchedTrade) tradeView {
	return tradeView{
		ID:               t.ID,
		Symbol:           t.Symbol,
		Quantity:         t.Quantity,
		DateAcquired:     t.DateAcquired,
		DateDisposed:     t.DateDisposed,
		Proceeds:         t.Proceeds,
		CostOrBasis:      t.CostOrBasis,
		AdjustmentAmount: t.AdjustmentAmount,
		GainOrLoss:       t.GainOrLoss(),
		CumulativeProfit: t.CumulativeProfit,
		Commission:       t.Commission,
		Fees:             t.Fees,
		BuyOrderID:       t.BuyOrderID,
		SellOrderID:      t.SellOrderID,
		LongTermGain:     t.LongTermGain,
	}
}

func tradeViews(trades []models.MatchedTrade) []tradeView {
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, newTradeView(t))
	}
	return views
}

type lotView struct {
	Symbol    string          `json:"symbol"`
	OrderID   int64           `json:"order_id"`
	Direction string          `json:"direction"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TradeDate time.Time       `json:"trade_date"`
}

func openLotViews(p *ledger.Processor) []lotView {
	var lots []lotView
	for _, symbol := range p.OpenSymbols() {
		buys, sells := p.OpenLots(symbol)
		for _, tx := range append(buys, sells...) {
			lots = append(lots, lotView{
				Symbol:    symbol,
				OrderID:   tx.OrderID,
				Direction: string(tx.Direction),
				Quantity:  tx.Quantity,
				UnitCost:  tx.UnitCost(),
				TradeDate: tx.TradeDate,
			})
		}
	}
	return lots
}

type totalsView struct {
	Fills      int             `json:"fills"`
	Trades     int             `json:"trades"`
	Rejected   int             `json:"rejected"`
	Profit     decimal.Decimal `json:"realized_pnl"`
	Commission decimal.Decimal `json:"commission"`
	Fees       decimal.Decimal `json:"fees"`
}

func newProcessCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <fills.csv>",
		Short: "Match fills into round-trip trades",
		Long: `Read fills from a CSV file and match them into round-trip trades.

The file needs the columns time, symbol, order_id, quantity and price;
exchange is optional. Quantities are signed: positive buys, negative sells.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			fills, discipline, err := app.loadFills(cmd, args[0])
			if err != nil {
				return err
			}

			workers, _ := cmd.Flags().GetInt("workers")
			persist, _ := cmd.Flags().GetBool("persist")
			exportPath, _ := cmd.Flags().GetString("export")
			strict, _ := cmd.Flags().GetBool("strict")

			result, err := app.Reconcile(cmd.Context(), fills, RunOptions{
				Discipline: discipline,
				Workers:    workers,
				Persist:    persist,
				Source:     args[0],
			})
			if err != nil {
				return err
			}

			trades := result.Processor.Trades()
			if exportPath != "" {
				if err := csvio.WriteTradesFile(exportPath, trades); err != nil {
					return err
				}
			}

			totals := result.Processor.Totals()
			if output.IsJSON() {
				if err := output.JSON(map[string]interface{}{
					"discipline": discipline.String(),
					"trades":     tradeViews(trades),
					"open_lots":  openLotViews(result.Processor),
					"rejected":   result.Rejected,
					"totals": totalsView{
						Fills:      result.Fills,
						Trades:     totals.TradeCount,
						Rejected:   len(result.Rejected),
						Profit:     totals.Profit,
						Commission: totals.Commission,
						Fees:       totals.Fees,
					},
				}); err != nil {
					return err
				}
			} else {
				renderTrades(output, trades, app.Config.UI.DateFormat)
				output.Println()
				renderRejections(output, result.Rejected)
				renderOpenPositions(output, result.Processor)

				output.Bold("Summary (%s)", discipline)
				output.Printf("  Fills:        %d\n", result.Fills)
				output.Printf("  Trades:       %d\n", totals.TradeCount)
				output.Printf("  Realized P&L: %s\n", output.FormatPnL(totals.Profit))
				output.Printf("  Commission:   %s\n", FormatMoney(totals.Commission))
				output.Printf("  Fees:         %s\n", FormatMoney(totals.Fees))
				if persist {
					output.Dim("  %d trades saved to %s", result.Persisted, app.Config.Store.DBPath)
				}
				if exportPath != "" {
					output.Success("✓ Exported %d trades to %s", len(trades), exportPath)
				}
			}

			if strict && len(result.Rejected) > 0 {
				first := result.Rejected[0]
				return fmt.Errorf("%d fills rejected, first: order %d (%s): %s",
					len(result.Rejected), first.OrderID, first.Symbol, first.Error)
			}
			return nil
		},
	}

	cmd.Flags().String("discipline", "", "matching discipline: fifo or lifo (default from config)")
	cmd.Flags().Int("workers", 0, "number of symbol workers (default from config)")
	cmd.Flags().String("export", "", "write matched trades to this CSV file")
	cmd.Flags().Bool("persist", false, "save transactions and trades to the database")
	cmd.Flags().Bool("strict", false, "fail if any fill is rejected")

	return cmd
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions <fills.csv>",
		Short: "Show lots left open after matching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			fills, discipline, err := app.loadFills(cmd, args[0])
			if err != nil {
				return err
			}

			result, err := app.Reconcile(cmd.Context(), fills, RunOptions{Discipline: discipline})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"positions": result.Processor.OpenPositions(),
					"open_lots": openLotViews(result.Processor),
				})
			}

			if len(result.Processor.OpenSymbols()) == 0 {
				output.Info("All positions are flat")
				return nil
			}
			renderOpenPositions(output, result.Processor)
			return nil
		},
	}

	cmd.Flags().String("discipline", "", "matching discipline: fifo or lifo (default from config)")
	return cmd
}

func renderTrades(output *Output, trades []models.MatchedTrade, dateFormat string) {
	if len(trades) == 0 {
		output.Info("No matched trades")
		return
	}

	table := NewTable(output, "Symbol", "Qty", "Acquired", "Disposed", "Proceeds", "Cost", "P&L", "Cumulative", "Term").
		AlignRight(1, 4, 5, 6, 7)
	for _, t := range trades {
		term := "short"
		if t.LongTermGain {
			term = "long"
		}
		table.AddRow(
			t.Symbol,
			FormatQuantity(t.Quantity),
			FormatDate(t.DateAcquired, dateFormat),
			FormatDate(t.DateDisposed, dateFormat),
			FormatMoney(t.Proceeds),
			FormatMoney(t.CostOrBasis),
			output.FormatPnL(t.GainOrLoss()),
			output.FormatPnL(t.CumulativeProfit),
			term,
		)
	}
	table.Render()
}

func renderRejections(output *Output, rejected []Rejection) {
	if len(rejected) == 0 {
		return
	}
	output.Warning("%d fills rejected", len(rejected))
	table := NewTable(output, "Order", "Symbol", "Rule", "Error")
	for _, r := range rejected {
		rule := r.Rule
		if rule == "" {
			rule = "-"
		}
		table.AddRow(fmt.Sprintf("%d", r.OrderID), r.Symbol, rule, TruncateString(r.Error, 60))
	}
	table.Render()
	output.Println()
}

func renderOpenPositions(output *Output, p *ledger.Processor) {
	lots := openLotViews(p)
	if len(lots) == 0 {
		return
	}

	output.Bold("Open Positions")
	table := NewTable(output, "Symbol", "Order", "Side", "Qty", "Unit Cost", "Opened").AlignRight(3, 4)
	for _, lot := range lots {
		side := output.Green(lot.Direction)
		if lot.Direction == string(models.DirectionSell) {
			side = output.Red(lot.Direction)
		}
		table.AddRow(
			lot.Symbol,
			fmt.Sprintf("%d", lot.OrderID),
			side,
			FormatQuantity(lot.Quantity),
			FormatPrice(lot.UnitCost),
			FormatDate(lot.TradeDate, ""),
		)
	}
	table.Render()
	output.Println()
}

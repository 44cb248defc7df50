// Package report computes performance statistics over matched trades.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/models"
)

// Stats summarises a set of matched trades.
type Stats struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       float64         `json:"win_rate"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	GrossLoss     decimal.Decimal `json:"gross_loss"`
	NetPnL        decimal.Decimal `json:"net_pnl"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	LargestWin    decimal.Decimal `json:"largest_win"`
	LargestLoss   decimal.Decimal `json:"largest_loss"`
	ProfitFactor  float64         `json:"profit_factor"`
	Expectancy    decimal.Decimal `json:"expectancy"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
	Commission    decimal.Decimal `json:"commission"`
	Fees          decimal.Decimal `json:"fees"`
	Quantity      int64           `json:"quantity"`
	AvgHolding    time.Duration   `json:"avg_holding"`

	BySymbol []Breakdown `json:"by_symbol"`
	ByTerm   []Breakdown `json:"by_term"`
}

// Breakdown is the P&L of one group of trades.
type Breakdown struct {
	Key     string          `json:"key"`
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	PnL     decimal.Decimal `json:"pnl"`
	WinRate float64         `json:"win_rate"`
}

// Calculate computes statistics for trades, which are expected in creation
// order. A trade with zero gain counts as a loss.
func Calculate(trades []models.MatchedTrade) Stats {
	s := Stats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return s
	}

	bySymbol := make(map[string]*Breakdown)
	byTerm := make(map[string]*Breakdown)

	var running, peak decimal.Decimal
	var held time.Duration

	for _, t := range trades {
		pnl := t.GainOrLoss()
		win := t.IsWin()

		if win {
			s.WinningTrades++
			s.GrossProfit = s.GrossProfit.Add(pnl)
			if pnl.GreaterThan(s.LargestWin) {
				s.LargestWin = pnl
			}
		} else {
			s.LosingTrades++
			s.GrossLoss = s.GrossLoss.Add(pnl)
			if pnl.LessThan(s.LargestLoss) {
				s.LargestLoss = pnl
			}
		}

		s.Commission = s.Commission.Add(t.Commission)
		s.Fees = s.Fees.Add(t.Fees)
		s.Quantity += t.Quantity
		if d := t.HoldingPeriod(); d < 0 {
			held -= d
		} else {
			held += d
		}

		running = running.Add(pnl)
		if running.GreaterThan(peak) {
			peak = running
		}
		if dd := peak.Sub(running); dd.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = dd
		}

		addTo(bySymbol, t.Symbol, pnl, win)
		term := "short-term"
		if t.LongTermGain {
			term = "long-term"
		}
		addTo(byTerm, term, pnl, win)
	}

	n := decimal.NewFromInt(int64(len(trades)))
	s.NetPnL = s.GrossProfit.Add(s.GrossLoss)
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	s.Expectancy = s.NetPnL.Div(n).Round(2)
	s.AvgHolding = held / time.Duration(len(trades))

	if s.WinningTrades > 0 {
		s.AvgWin = s.GrossProfit.Div(decimal.NewFromInt(int64(s.WinningTrades))).Round(2)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = s.GrossLoss.Div(decimal.NewFromInt(int64(s.LosingTrades))).Round(2)
	}
	if !s.GrossLoss.IsZero() {
		s.ProfitFactor = s.GrossProfit.Div(s.GrossLoss.Neg()).InexactFloat64()
	}

	s.BySymbol = flatten(bySymbol)
	s.ByTerm = flatten(byTerm)
	return s
}

func addTo(groups map[string]*Breakdown, key string, pnl decimal.Decimal, win bool) {
	b, ok := groups[key]
	if !ok {
		b = &Breakdown{Key: key}
		groups[key] = b
	}
	b.Trades++
	b.PnL = b.PnL.Add(pnl)
	if win {
		b.Wins++
	}
}

// flatten returns the groups ordered by P&L, best first.
func flatten(groups map[string]*Breakdown) []Breakdown {
	out := make([]Breakdown, 0, len(groups))
	for _, b := range groups {
		b.WinRate = float64(b.Wins) / float64(b.Trades) * 100
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].PnL.Cmp(out[j].PnL); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

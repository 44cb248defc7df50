package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/models"
)

var start = time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)

func trade(symbol, proceeds, cost string, days int, longTerm bool) models.MatchedTrade {
	return models.MatchedTrade{
		Symbol:       symbol,
		Quantity:     10,
		DateAcquired: start,
		DateDisposed: start.AddDate(0, 0, days),
		Proceeds:     decimal.RequireFromString(proceeds),
		CostOrBasis:  decimal.RequireFromString(cost),
		Commission:   decimal.NewFromInt(-1),
		Fees:         decimal.RequireFromString("-0.05"),
		LongTermGain: longTerm,
	}
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil)
	if s.TotalTrades != 0 || !s.NetPnL.IsZero() || s.BySymbol != nil {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestCalculate(t *testing.T) {
	trades := []models.MatchedTrade{
		trade("AAPL", "1200", "1000", 2, false), // +200
		trade("MSFT", "900", "1000", 4, false),  // -100
		trade("AAPL", "1000", "1000", 6, false), // 0, counts as a loss
		trade("SPY", "1500", "1000", 400, true), // +500
	}

	s := Calculate(trades)

	if s.TotalTrades != 4 || s.WinningTrades != 2 || s.LosingTrades != 2 {
		t.Fatalf("counts = %d/%d/%d", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	}
	checks := map[string][2]decimal.Decimal{
		"gross profit": {s.GrossProfit, decimal.NewFromInt(700)},
		"gross loss":   {s.GrossLoss, decimal.NewFromInt(-100)},
		"net":          {s.NetPnL, decimal.NewFromInt(600)},
		"avg win":      {s.AvgWin, decimal.NewFromInt(350)},
		"avg loss":     {s.AvgLoss, decimal.NewFromInt(-50)},
		"largest win":  {s.LargestWin, decimal.NewFromInt(500)},
		"largest loss": {s.LargestLoss, decimal.NewFromInt(-100)},
		"expectancy":   {s.Expectancy, decimal.NewFromInt(150)},
		"drawdown":     {s.MaxDrawdown, decimal.NewFromInt(100)},
		"commission":   {s.Commission, decimal.NewFromInt(-4)},
		"fees":         {s.Fees, decimal.RequireFromString("-0.2")},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s = %s, want %s", name, c[0], c[1])
		}
	}
	if s.WinRate != 50 {
		t.Errorf("win rate = %v, want 50", s.WinRate)
	}
	if s.ProfitFactor != 7 {
		t.Errorf("profit factor = %v, want 7", s.ProfitFactor)
	}
	if want := 103 * 24 * time.Hour; s.AvgHolding != want {
		t.Errorf("avg holding = %s, want %s", s.AvgHolding, want)
	}

	if len(s.BySymbol) != 3 || s.BySymbol[0].Key != "SPY" || s.BySymbol[2].Key != "MSFT" {
		t.Errorf("by symbol order = %+v", s.BySymbol)
	}
	aapl := s.BySymbol[1]
	if aapl.Trades != 2 || aapl.Wins != 1 || aapl.WinRate != 50 || !aapl.PnL.Equal(decimal.NewFromInt(200)) {
		t.Errorf("AAPL breakdown = %+v", aapl)
	}

	if len(s.ByTerm) != 2 || s.ByTerm[0].Key != "long-term" || s.ByTerm[1].Trades != 3 {
		t.Errorf("by term = %+v", s.ByTerm)
	}
}

func TestCalculateShortTradesHoldingIsPositive(t *testing.T) {
	short := trade("TSLA", "1000", "900", -3, false)
	if s := Calculate([]models.MatchedTrade{short}); s.AvgHolding != 72*time.Hour {
		t.Errorf("avg holding = %s, want 72h", s.AvgHolding)
	}
}

func TestCalculateNoLossesLeavesProfitFactorZero(t *testing.T) {
	s := Calculate([]models.MatchedTrade{trade("AAPL", "11", "10", 1, false)})
	if s.ProfitFactor != 0 || !s.MaxDrawdown.IsZero() {
		t.Errorf("stats = %+v", s)
	}
}

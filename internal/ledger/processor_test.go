package ledger

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/models"
)

func TestExactMatchRoundTrip(t *testing.T) {
	p := NewProcessor(WithIDGenerator(sequentialIDs()))

	if _, err := p.ProcessTransaction(newTx("AAPL", 1, 100, "10", "-1", baseTime)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	trades, err := p.ProcessTransaction(newTx("AAPL", 2, -100, "12", "-1", baseTime.Add(time.Hour)))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}

	tr := trades[0]
	if !tr.Proceeds.Equal(dec("1199")) {
		t.Errorf("Proceeds = %s, want 1199", tr.Proceeds)
	}
	if !tr.CostOrBasis.Equal(dec("1001")) {
		t.Errorf("CostOrBasis = %s, want 1001", tr.CostOrBasis)
	}
	if !tr.GainOrLoss().Equal(dec("198")) {
		t.Errorf("GainOrLoss = %s, want 198", tr.GainOrLoss())
	}
	if tr.Quantity != 100 || tr.BuyOrderID != 1 || tr.SellOrderID != 2 {
		t.Errorf("unexpected trade identity: %+v", tr)
	}
	if tr.ID != "T1" {
		t.Errorf("ID = %q, want T1", tr.ID)
	}
	if !p.TotalProfit().Equal(dec("198")) {
		t.Errorf("TotalProfit = %s, want 198", p.TotalProfit())
	}
	if !tr.CumulativeProfit.Equal(p.TotalProfit()) {
		t.Errorf("CumulativeProfit = %s, want %s", tr.CumulativeProfit, p.TotalProfit())
	}
	if !p.TotalCommission().Equal(dec("-2")) {
		t.Errorf("TotalCommission = %s, want -2", p.TotalCommission())
	}
	if !p.LastTradeCommission().Equal(dec("-2")) {
		t.Errorf("LastTradeCommission = %s, want -2", p.LastTradeCommission())
	}
	if pos := p.GetPosition("AAPL"); pos != 0 {
		t.Errorf("GetPosition = %d, want 0", pos)
	}
	if len(p.OpenSymbols()) != 0 {
		t.Errorf("flat symbol should be removed from open positions, got %v", p.OpenSymbols())
	}
}

func TestPartialFillSplitting(t *testing.T) {
	p := NewProcessor()

	mustProcess(t, p, newTx("AAPL", 1, 150, "10", "-1", baseTime))

	first := mustProcess(t, p, newTx("AAPL", 2, -100, "11", "-1", baseTime.Add(time.Hour)))
	if len(first) != 1 || first[0].Quantity != 100 {
		t.Fatalf("first sell trades = %+v, want one trade of 100", first)
	}
	if pos := p.GetPosition("AAPL"); pos != 50 {
		t.Fatalf("GetPosition after first sell = %d, want 50", pos)
	}

	second := mustProcess(t, p, newTx("AAPL", 3, -50, "12", "-1", baseTime.Add(2*time.Hour)))
	if len(second) != 1 || second[0].Quantity != 50 {
		t.Fatalf("second sell trades = %+v, want one trade of 50", second)
	}
	if pos := p.GetPosition("AAPL"); pos != 0 {
		t.Errorf("GetPosition = %d, want 0", pos)
	}

	// The split remainder kept the original unit cost and no commission.
	if !second[0].CostOrBasis.Equal(dec("500")) {
		t.Errorf("remainder cost basis = %s, want 500", second[0].CostOrBasis)
	}
	if !first[0].CostOrBasis.Equal(dec("1001")) {
		t.Errorf("first cost basis = %s, want 1001", first[0].CostOrBasis)
	}
}

func TestMatchingOrderFollowsDiscipline(t *testing.T) {
	tests := []struct {
		name       string
		discipline inventory.Discipline
		wantBuy    int64
	}{
		{"fifo matches earliest buy", inventory.FIFO, 1},
		{"lifo matches latest buy", inventory.LIFO, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(WithDiscipline(tt.discipline))
			mustProcess(t, p, newTx("SPY", 1, 100, "400", "0", baseTime))
			mustProcess(t, p, newTx("SPY", 2, 100, "410", "0", baseTime.Add(time.Minute)))

			trades := mustProcess(t, p, newTx("SPY", 3, -100, "420", "0", baseTime.Add(2*time.Minute)))
			if len(trades) != 1 {
				t.Fatalf("got %d trades, want 1", len(trades))
			}
			if trades[0].BuyOrderID != tt.wantBuy {
				t.Errorf("matched buy #%d, want #%d", trades[0].BuyOrderID, tt.wantBuy)
			}
			if pos := p.GetPosition("SPY"); pos != 100 {
				t.Errorf("GetPosition = %d, want 100", pos)
			}
		})
	}
}

func TestDefaultDisciplineIsLIFO(t *testing.T) {
	if d := NewProcessor().Discipline(); d != inventory.LIFO {
		t.Errorf("default discipline = %s, want LIFO", d)
	}
}

func TestShortSaleThenCover(t *testing.T) {
	p := NewProcessor()
	mustProcess(t, p, newTx("TSLA", 1, -10, "200", "-1", baseTime))
	if pos := p.GetPosition("TSLA"); pos != -10 {
		t.Fatalf("GetPosition = %d, want -10", pos)
	}

	trades := mustProcess(t, p, newTx("TSLA", 2, 10, "180", "-1", baseTime.AddDate(0, 0, 3)))
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.GainOrLoss().Equal(dec("198")) {
		t.Errorf("GainOrLoss = %s, want 198", tr.GainOrLoss())
	}
	if !tr.IsShort() {
		t.Error("trade opened by a sell should report IsShort")
	}
	if tr.LongTermGain {
		t.Error("short trade must not be long term")
	}
}

func TestLongTermGainAfterOneYear(t *testing.T) {
	p := NewProcessor()
	mustProcess(t, p, newTx("KO", 1, 10, "50", "0", baseTime))

	short := mustProcess(t, p, newTx("KO", 2, -5, "55", "0", baseTime.AddDate(0, 0, 365)))
	if short[0].LongTermGain {
		t.Error("exactly 365 days held should not be long term")
	}
	long := mustProcess(t, p, newTx("KO", 3, -5, "55", "0", baseTime.AddDate(0, 0, 366)))
	if !long[0].LongTermGain {
		t.Error("366 days held should be long term")
	}
}

func TestEmptyQueries(t *testing.T) {
	p := NewProcessor()

	pnl, ok := p.CalculateLastTradePandL("NOPE")
	if ok {
		t.Error("CalculateLastTradePandL on unknown symbol should report ok=false")
	}
	if !pnl.IsZero() {
		t.Errorf("pnl = %s, want 0", pnl)
	}
	if pos := p.GetPosition("NOPE"); pos != 0 {
		t.Errorf("GetPosition = %d, want 0", pos)
	}
	if trades := p.Trades(); len(trades) != 0 {
		t.Errorf("Trades = %v, want empty", trades)
	}
	if !p.TotalProfit().IsZero() {
		t.Errorf("TotalProfit = %s, want 0", p.TotalProfit())
	}
	if buys, sells := p.OpenLots("NOPE"); buys != nil || sells != nil {
		t.Errorf("OpenLots = %v/%v, want nil", buys, sells)
	}
}

func TestCalculateLastTradePandLPerSymbol(t *testing.T) {
	p := NewProcessor()
	mustProcess(t, p, newTx("A", 1, 10, "10", "0", baseTime))
	mustProcess(t, p, newTx("A", 2, -10, "12", "0", baseTime))
	mustProcess(t, p, newTx("B", 3, 10, "10", "0", baseTime))
	mustProcess(t, p, newTx("B", 4, -10, "9", "0", baseTime))

	pnl, ok := p.CalculateLastTradePandL("A")
	if !ok || !pnl.Equal(dec("20")) {
		t.Errorf("A last pnl = %s (ok=%v), want 20", pnl, ok)
	}
	pnl, ok = p.CalculateLastTradePandL("B")
	if !ok || !pnl.Equal(dec("-10")) {
		t.Errorf("B last pnl = %s (ok=%v), want -10", pnl, ok)
	}
	if !p.TotalProfit().Equal(dec("10")) {
		t.Errorf("TotalProfit = %s, want 10", p.TotalProfit())
	}
	if got := len(p.TradesFor("A")); got != 1 {
		t.Errorf("TradesFor(A) = %d trades, want 1", got)
	}
}

func TestCreateTradeRejectsMismatchedQuantities(t *testing.T) {
	p := NewProcessor()

	_, err := p.CreateTrade(
		newTx("AAPL", 1, 100, "10", "0", baseTime),
		newTx("AAPL", 2, -90, "11", "0", baseTime),
	)
	if !apperrors.IsAccountingError(err) {
		t.Fatalf("err = %v, want accounting invariant violation", err)
	}
	var acctErr *apperrors.AccountingError
	if !apperrors.As(err, &acctErr) || acctErr.Rule != "quantity-mismatch" {
		t.Errorf("err = %#v, want rule quantity-mismatch", err)
	}
	if len(p.Trades()) != 0 {
		t.Errorf("malformed trade appended to ledger")
	}
	if !p.TotalProfit().IsZero() {
		t.Errorf("TotalProfit changed to %s", p.TotalProfit())
	}
}

func TestCreateTradeRejectsWrongSigns(t *testing.T) {
	buy := newTx("AAPL", 1, 100, "10", "0", baseTime)
	sell := newTx("AAPL", 2, -100, "11", "0", baseTime)

	badBuyAmount := buy
	badBuyAmount.Amount = badBuyAmount.Amount.Neg()
	badSellAmount := sell
	badSellAmount.Amount = decimal.Zero
	badBuyQty := buy
	badBuyQty.Quantity = -100
	otherSymbol := sell
	otherSymbol.Symbol = "MSFT"

	tests := []struct {
		name      string
		buy, sell models.OrderTransaction
		rule      string
	}{
		{"positive buy amount", badBuyAmount, sell, "buy-amount"},
		{"zero sell amount", buy, badSellAmount, "sell-amount"},
		{"negative buy quantity", badBuyQty, sell, "buy-quantity"},
		{"sell passed as buy", buy, buy, "sell-amount"},
		{"different symbols", buy, otherSymbol, "symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor()
			_, err := p.CreateTrade(tt.buy, tt.sell)
			var acctErr *apperrors.AccountingError
			if !apperrors.As(err, &acctErr) {
				t.Fatalf("err = %v, want *AccountingError", err)
			}
			if acctErr.Rule != tt.rule {
				t.Errorf("rule = %q, want %q", acctErr.Rule, tt.rule)
			}
			if len(p.Trades()) != 0 {
				t.Error("ledger must stay empty")
			}
		})
	}
}

func TestProcessTransactionRejectsMalformedInput(t *testing.T) {
	good := newTx("AAPL", 1, 100, "10", "0", baseTime)

	noSymbol := good
	noSymbol.Symbol = ""
	zeroQty := good
	zeroQty.Quantity = 0
	wrongDirection := good
	wrongDirection.Direction = models.DirectionSell
	positiveCommission := good
	positiveCommission.Commission = dec("1")
	positiveFees := good
	positiveFees.Fees = dec("50")
	minQty := newTx("AAPL", 1, -1, "10", "0", baseTime)
	minQty.Quantity = math.MinInt64

	for name, tx := range map[string]models.OrderTransaction{
		"no symbol":           noSymbol,
		"zero quantity":       zeroQty,
		"direction mismatch":  wrongDirection,
		"positive commission": positiveCommission,
		"positive fees":       positiveFees,
		"quantity overflow":   minQty,
	} {
		p := NewProcessor()
		_, err := p.ProcessTransaction(tx)
		if !apperrors.Is(err, apperrors.ErrInvalidTransaction) {
			t.Errorf("%s: err = %v, want ErrInvalidTransaction", name, err)
		}
		if apperrors.IsAccountingError(err) {
			t.Errorf("%s: input validation must not be reported as an accounting fault", name)
		}
		if len(p.OpenSymbols()) != 0 {
			t.Errorf("%s: rejected transaction entered the inventory", name)
		}
	}
}

func TestObserversSeeEveryTrade(t *testing.T) {
	var seen []models.MatchedTrade
	p := NewProcessor(
		WithDiscipline(inventory.FIFO),
		WithObserver(ObserverFunc(func(tr models.MatchedTrade) {
			seen = append(seen, tr)
		})),
	)

	mustProcess(t, p, newTx("AAPL", 1, 30, "10", "0", baseTime))
	mustProcess(t, p, newTx("AAPL", 2, 30, "10", "0", baseTime))
	mustProcess(t, p, newTx("AAPL", 3, -60, "11", "0", baseTime))

	if len(seen) != 2 {
		t.Fatalf("observer saw %d trades, want 2", len(seen))
	}
	if !seen[1].CumulativeProfit.Equal(dec("60")) {
		t.Errorf("cumulative profit = %s, want 60", seen[1].CumulativeProfit)
	}
}

func TestConcurrentSymbols(t *testing.T) {
	p := NewProcessor()
	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := int64(0); i < 50; i++ {
				if _, err := p.ProcessTransaction(newTx(sym, i*2, 10, "10", "-1", baseTime)); err != nil {
					t.Errorf("%s buy: %v", sym, err)
					return
				}
				if _, err := p.ProcessTransaction(newTx(sym, i*2+1, -10, "11", "-1", baseTime)); err != nil {
					t.Errorf("%s sell: %v", sym, err)
					return
				}
			}
		}(sym)
	}
	wg.Wait()

	totals := p.Totals()
	if totals.TradeCount != len(symbols)*50 {
		t.Errorf("TradeCount = %d, want %d", totals.TradeCount, len(symbols)*50)
	}
	// Each trade gains 10 - 2 in commission.
	want := decimal.NewFromInt(int64(len(symbols) * 50 * 8))
	if !totals.Profit.Equal(want) {
		t.Errorf("Profit = %s, want %s", totals.Profit, want)
	}
	if totals.OpenSymbols != 0 {
		t.Errorf("OpenSymbols = %d, want 0", totals.OpenSymbols)
	}
}

func TestObserversSeeLedgerOrderUnderConcurrency(t *testing.T) {
	var seen []models.MatchedTrade
	p := NewProcessor(WithObserver(ObserverFunc(func(tr models.MatchedTrade) {
		seen = append(seen, tr)
	})))

	var wg sync.WaitGroup
	for _, sym := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := int64(0); i < 25; i++ {
				_, _ = p.ProcessTransaction(newTx(sym, i*2, 5, "10", "0", baseTime))
				_, _ = p.ProcessTransaction(newTx(sym, i*2+1, -5, "12", "0", baseTime))
			}
		}(sym)
	}
	wg.Wait()

	ledger := p.Trades()
	if len(seen) != len(ledger) {
		t.Fatalf("observer saw %d trades, ledger has %d", len(seen), len(ledger))
	}
	for i := range ledger {
		if seen[i].ID != ledger[i].ID {
			t.Fatalf("delivery %d is %s, ledger has %s", i, seen[i].ID, ledger[i].ID)
		}
	}
}

func mustProcess(t *testing.T, p *Processor, tx models.OrderTransaction) []models.MatchedTrade {
	t.Helper()
	trades, err := p.ProcessTransaction(tx)
	if err != nil {
		t.Fatalf("ProcessTransaction(#%d): %v", tx.OrderID, err)
	}
	return trades
}

func BenchmarkProcessTransaction(b *testing.B) {
	for _, d := range []inventory.Discipline{inventory.FIFO, inventory.LIFO} {
		b.Run(d.String(), func(b *testing.B) {
			p := NewProcessor(WithDiscipline(d), WithIDGenerator(sequentialIDs()))
			buy := newTx("AAPL", 1, 30, "10.01", "-1", baseTime)
			sell := newTx("AAPL", 2, -45, "10.37", "-1", baseTime)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				// three buys then two sells: every sell splits a lot
				tx := buy
				if i%5 >= 3 {
					tx = sell
				}
				if _, err := p.ProcessTransaction(tx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

package ledger

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/models"
)

var propertySymbols = []string{"AAPL", "MSFT", "SPY"}

// Property: for any stream of fills, matched trades consume equal and opposite
// quantities, so the unmatched quantity left open equals the signed sum of the
// input, and the absolute input equals open absolute quantity plus twice the
// matched quantity.
func TestProperty_QuantityConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("open + 2*matched == input quantity", prop.ForAll(
		func(quantities []int64, fifo bool) bool {
			discipline := inventory.LIFO
			if fifo {
				discipline = inventory.FIFO
			}
			p := NewProcessor(WithDiscipline(discipline))

			inputNet := make(map[string]int64)
			var inputAbs int64
			for i, q := range quantities {
				if q == 0 {
					q = 1
				}
				symbol := propertySymbols[i%len(propertySymbols)]
				price := decimal.NewFromInt(int64(10 + i%7)).Add(decimal.New(int64(i%100), -2))
				tx := newTx(symbol, int64(i+1), q, price.String(), "-1", baseTime.Add(time.Duration(i)*time.Minute))

				if _, err := p.ProcessTransaction(tx); err != nil {
					t.Logf("ProcessTransaction(%d): %v", q, err)
					return false
				}
				inputNet[symbol] += q
				inputAbs += abs(q)
			}

			var matched int64
			for _, tr := range p.Trades() {
				if tr.Quantity <= 0 {
					t.Logf("trade with non-positive quantity: %+v", tr)
					return false
				}
				matched += tr.Quantity
			}

			var openAbs int64
			for _, symbol := range propertySymbols {
				if got := p.GetPosition(symbol); got != inputNet[symbol] {
					t.Logf("%s: open %d, input net %d", symbol, got, inputNet[symbol])
					return false
				}
				buys, sells := p.OpenLots(symbol)
				if len(buys) > 0 && len(sells) > 0 {
					t.Logf("%s: both sides open after resolution", symbol)
					return false
				}
				for _, tx := range append(buys, sells...) {
					openAbs += tx.AbsQuantity()
				}
			}

			if openAbs+2*matched != inputAbs {
				t.Logf("open %d + 2*matched %d != input %d", openAbs, matched, inputAbs)
				return false
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-300, 300)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: splitting a lot conserves quantity and gross amount exactly and
// keeps the unit cost within one cent over the whole lot.
func TestProperty_SplitPreservesCostBasis(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	cent := decimal.New(1, -2)

	properties.Property("split keeps unit cost", prop.ForAll(
		func(qty int64, cents int64, cut int64, sell bool) bool {
			if sell {
				qty = -qty
			}
			price := decimal.New(cents, -2)
			tx := newTx("AAPL", 1, qty, price.String(), "-1.25", baseTime)

			part := 1 + cut%(tx.AbsQuantity()-1)
			matched, rest, err := Split(tx, part)
			if err != nil {
				t.Logf("Split(%d, %d): %v", qty, part, err)
				return false
			}

			if matched.Quantity+rest.Quantity != tx.Quantity {
				return false
			}
			if !matched.Amount.Add(rest.Amount).Equal(tx.Amount) {
				return false
			}
			if !matched.Commission.Add(rest.Commission).Equal(tx.Commission) {
				return false
			}
			for _, leg := range []models.OrderTransaction{matched, rest} {
				drift := leg.UnitCost().Sub(tx.UnitCost()).Abs().Mul(decimal.NewFromInt(leg.AbsQuantity()))
				if drift.GreaterThan(cent) {
					t.Logf("unit cost drift %s on leg %d of %d @ %s", drift, leg.Quantity, qty, price)
					return false
				}
				if leg.Amount.Sign() != tx.Amount.Sign() {
					return false
				}
			}
			return true
		},
		gen.Int64Range(2, 100000),
		gen.Int64Range(1, 500000),
		gen.Int64Range(0, 1<<40),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: realized P&L is the sum of trade gains and each trade's
// cumulative profit is the running total at the time it was created.
func TestProperty_CumulativeProfitIsRunningTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("cumulative profit accumulates gains", prop.ForAll(
		func(quantities []int64) bool {
			p := NewProcessor(WithDiscipline(inventory.FIFO))
			for i, q := range quantities {
				if q == 0 {
					continue
				}
				price := decimal.NewFromInt(int64(50 + i%13))
				tx := newTx("SPY", int64(i+1), q, price.String(), "-0.5", baseTime)
				if _, err := p.ProcessTransaction(tx); err != nil {
					return false
				}
			}

			running := decimal.Zero
			for _, tr := range p.Trades() {
				running = running.Add(tr.GainOrLoss())
				if !tr.CumulativeProfit.Equal(running) {
					return false
				}
			}
			return running.Equal(p.TotalProfit())
		},
		gen.SliceOf(gen.Int64Range(-100, 100)),
	))

	properties.TestingRun(t)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

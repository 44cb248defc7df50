// Package ledger reconciles order transactions into matched round-trip trades
// and keeps the realized P&L running totals.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/models"
)

// Observer is notified of every trade the processor creates. Observers are
// called one at a time, in ledger order, after the ledger has been updated.
// They must not call back into the processor.
type Observer interface {
	OnTrade(trade models.MatchedTrade)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(trade models.MatchedTrade)

// OnTrade calls f(trade).
func (f ObserverFunc) OnTrade(trade models.MatchedTrade) {
	f(trade)
}

// Option configures a Processor.
type Option func(*Processor)

// WithDiscipline sets the matching discipline for new inventories.
func WithDiscipline(d inventory.Discipline) Option {
	return func(p *Processor) {
		p.discipline = d
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		p.observers = append(p.observers, o)
	}
}

// WithIDGenerator overrides how trade IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(p *Processor) {
		p.newID = fn
	}
}

// Processor owns the open positions and the trade ledger. It is safe for
// concurrent use; fills of a single symbol must still be submitted in order.
type Processor struct {
	mu         sync.Mutex
	notifyMu   sync.Mutex // serialises observer delivery in ledger order
	discipline inventory.Discipline
	newID      func() string
	observers  []Observer

	open   map[string]*inventory.Inventory
	trades []models.MatchedTrade

	totalProfit         decimal.Decimal
	totalCommission     decimal.Decimal
	totalFees           decimal.Decimal
	lastTradeCommission decimal.Decimal
}

// NewProcessor creates a processor. Inventories default to LIFO matching.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		discipline: inventory.DefaultDiscipline,
		newID:      uuid.NewString,
		open:       make(map[string]*inventory.Inventory),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Discipline returns the matching discipline used for new inventories.
func (p *Processor) Discipline() inventory.Discipline {
	return p.discipline
}

// ProcessTransaction matches tx against the open lots of its symbol and
// returns the trades it closed.
//
// Either every resulting trade is recorded or none is: an accounting error
// leaves the ledger and the symbol's inventory exactly as they were.
func (p *Processor) ProcessTransaction(tx models.OrderTransaction) ([]models.MatchedTrade, error) {
	if err := ValidateTransaction(tx); err != nil {
		return nil, err
	}

	p.mu.Lock()

	var work *inventory.Inventory
	if inv, ok := p.open[tx.Symbol]; ok {
		work = inv.Clone()
	} else {
		work = inventory.New(tx.Symbol, p.discipline)
	}

	pairs, err := Resolve(work, tx)
	if err == nil {
		for _, pair := range pairs {
			if err = checkPair(pair.Buy, pair.Sell); err != nil {
				break
			}
		}
	}
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	created := make([]models.MatchedTrade, 0, len(pairs))
	for _, pair := range pairs {
		created = append(created, p.record(pair.Buy, pair.Sell))
	}

	if work.IsFlat() {
		delete(p.open, tx.Symbol)
	} else {
		p.open[tx.Symbol] = work
	}

	p.handOff(created)
	return created, nil
}

// CreateTrade validates an offsetting buy and sell and records the trade.
// A violated precondition returns an *errors.AccountingError and records
// nothing.
func (p *Processor) CreateTrade(buy, sell models.OrderTransaction) (models.MatchedTrade, error) {
	if err := checkPair(buy, sell); err != nil {
		return models.MatchedTrade{}, err
	}

	p.mu.Lock()
	trade := p.record(buy, sell)
	p.handOff([]models.MatchedTrade{trade})
	return trade, nil
}

// record builds the trade and updates the totals. p.mu must be held.
func (p *Processor) record(buy, sell models.OrderTransaction) models.MatchedTrade {
	commission := buy.Commission.Add(sell.Commission)
	fees := buy.Fees.Add(sell.Fees)

	trade := models.MatchedTrade{
		ID:               p.newID(),
		Symbol:           buy.Symbol,
		Broker:           buy.Broker,
		Quantity:         buy.Quantity,
		DateAcquired:     buy.TradeDate,
		DateDisposed:     sell.TradeDate,
		Proceeds:         sell.NetAmount().Abs(),
		CostOrBasis:      buy.NetAmount().Abs(),
		AdjustmentAmount: decimal.Zero,
		Commission:       commission,
		Fees:             fees,
		BuyOrderID:       buy.OrderID,
		SellOrderID:      sell.OrderID,
		LongTermGain:     models.HeldDays(buy.TradeDate, sell.TradeDate) > models.LongTermDays,
	}

	p.totalCommission = p.totalCommission.Add(commission)
	p.totalFees = p.totalFees.Add(fees)
	p.lastTradeCommission = commission
	p.totalProfit = p.totalProfit.Add(trade.GainOrLoss())
	trade.CumulativeProfit = p.totalProfit

	p.trades = append(p.trades, trade)
	return trade
}

// handOff releases p.mu and delivers trades to the observers. The notify
// lock is taken before p.mu is released so deliveries cannot overtake each
// other.
func (p *Processor) handOff(trades []models.MatchedTrade) {
	if len(p.observers) == 0 || len(trades) == 0 {
		p.mu.Unlock()
		return
	}

	p.notifyMu.Lock()
	p.mu.Unlock()
	defer p.notifyMu.Unlock()

	for _, trade := range trades {
		for _, o := range p.observers {
			o.OnTrade(trade)
		}
	}
}

// checkPair enforces the sign and quantity conventions of a matched pair.
func checkPair(buy, sell models.OrderTransaction) error {
	fail := func(rule, format string, args ...interface{}) error {
		return apperrors.NewAccountingError(buy.Symbol, rule, buy.OrderID, sell.OrderID, fmt.Sprintf(format, args...))
	}

	switch {
	case buy.Symbol != sell.Symbol:
		return fail("symbol", "legs belong to %s and %s", buy.Symbol, sell.Symbol)
	case !buy.Amount.IsNegative():
		return fail("buy-amount", "buy amount %s must be negative", buy.Amount)
	case !sell.Amount.IsPositive():
		return fail("sell-amount", "sell amount %s must be positive", sell.Amount)
	case buy.Quantity <= 0:
		return fail("buy-quantity", "buy quantity %d must be positive", buy.Quantity)
	case sell.Quantity >= 0:
		return fail("sell-quantity", "sell quantity %d must be negative", sell.Quantity)
	case buy.Quantity != -sell.Quantity:
		return fail("quantity-mismatch", "buy quantity %d does not offset sell quantity %d", buy.Quantity, sell.Quantity)
	}
	return nil
}

// ValidateTransaction checks that tx follows the sign conventions before it
// enters an inventory.
func ValidateTransaction(tx models.OrderTransaction) error {
	switch {
	case tx.Symbol == "":
		return apperrors.NewTransactionError("symbol", tx.Symbol, "symbol is required")
	case !tx.Direction.IsValid():
		return apperrors.NewTransactionError("direction", tx.Direction, "must be BUY or SELL")
	case tx.Quantity == 0:
		return apperrors.NewTransactionError("quantity", tx.Quantity, "must be non-zero")
	case tx.Quantity == math.MinInt64:
		return apperrors.NewTransactionError("quantity", tx.Quantity, "out of range")
	case (tx.Quantity > 0) != tx.IsBuy():
		return apperrors.NewTransactionError("quantity", tx.Quantity, fmt.Sprintf("sign does not match direction %s", tx.Direction))
	case tx.IsBuy() && !tx.Amount.IsNegative():
		return apperrors.NewTransactionError("amount", tx.Amount, "buy amount must be negative")
	case !tx.IsBuy() && !tx.Amount.IsPositive():
		return apperrors.NewTransactionError("amount", tx.Amount, "sell amount must be positive")
	case tx.Commission.IsPositive():
		return apperrors.NewTransactionError("commission", tx.Commission, "commission must not be positive")
	case tx.Fees.IsPositive():
		return apperrors.NewTransactionError("fees", tx.Fees, "fees must not be positive")
	}
	return nil
}

// Trades returns a copy of the ledger in creation order.
func (p *Processor) Trades() []models.MatchedTrade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MatchedTrade(nil), p.trades...)
}

// TradesFor returns the trades of one symbol in creation order.
func (p *Processor) TradesFor(symbol string) []models.MatchedTrade {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []models.MatchedTrade
	for _, t := range p.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out
}

// TotalProfit returns the realized P&L across all trades.
func (p *Processor) TotalProfit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalProfit
}

// TotalCommission returns the commission of all matched legs.
func (p *Processor) TotalCommission() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalCommission
}

// TotalFees returns the fees of all matched legs.
func (p *Processor) TotalFees() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFees
}

// LastTradeCommission returns the commission of the most recent trade.
func (p *Processor) LastTradeCommission() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTradeCommission
}

// GetPosition returns the signed unmatched quantity for symbol: positive when
// long, negative when short, zero when flat or never seen.
func (p *Processor) GetPosition(symbol string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	inv, ok := p.open[symbol]
	if !ok {
		return 0
	}
	return inv.NetQuantity()
}

// CalculateLastTradePandL returns the gain or loss of the most recent trade
// for symbol. ok is false when the symbol has no trades.
func (p *Processor) CalculateLastTradePandL(symbol string) (pnl decimal.Decimal, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.trades) - 1; i >= 0; i-- {
		if p.trades[i].Symbol == symbol {
			return p.trades[i].GainOrLoss(), true
		}
	}
	return decimal.Zero, false
}

// OpenPositions returns the signed unmatched quantity of every open symbol.
func (p *Processor) OpenPositions() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int64, len(p.open))
	for symbol, inv := range p.open {
		out[symbol] = inv.NetQuantity()
	}
	return out
}

// OpenSymbols returns the symbols with unmatched lots, sorted.
func (p *Processor) OpenSymbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbols := make([]string, 0, len(p.open))
	for symbol := range p.open {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// OpenLots returns copies of the unmatched buys and sells for symbol.
func (p *Processor) OpenLots(symbol string) (buys, sells []models.OrderTransaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inv, ok := p.open[symbol]
	if !ok {
		return nil, nil
	}
	return inv.Buys(), inv.Sells()
}

// Totals is a consistent snapshot of the running totals.
type Totals struct {
	Profit              decimal.Decimal
	Commission          decimal.Decimal
	Fees                decimal.Decimal
	LastTradeCommission decimal.Decimal
	TradeCount          int
	OpenSymbols         int
}

// Totals returns all running totals under a single lock.
func (p *Processor) Totals() Totals {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Totals{
		Profit:              p.totalProfit,
		Commission:          p.totalCommission,
		Fees:                p.totalFees,
		LastTradeCommission: p.lastTradeCommission,
		TradeCount:          len(p.trades),
		OpenSymbols:         len(p.open),
	}
}

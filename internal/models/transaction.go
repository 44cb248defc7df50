package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderTransaction is one side of a fill in cash-flow terms.
//
// Quantity is positive for buys and negative for sells. Amount is the gross
// cash flow: negative for buys, positive for sells. Commission and Fees are
// never positive.
type OrderTransaction struct {
	Symbol      string
	Exchange    string
	Broker      string
	Description string
	Direction   Direction
	OrderID     int64
	Quantity    int64
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	Commission  decimal.Decimal
	Fees        decimal.Decimal
	TradeDate   time.Time
	SettledDate time.Time
}

// NetAmount returns Amount + Commission + Fees.
func (t OrderTransaction) NetAmount() decimal.Decimal {
	return t.Amount.Add(t.Commission).Add(t.Fees)
}

// AbsQuantity returns the unsigned quantity.
func (t OrderTransaction) AbsQuantity() int64 {
	if t.Quantity < 0 {
		return -t.Quantity
	}
	return t.Quantity
}

// UnitCost returns |Amount / Quantity|, or zero for an empty transaction.
func (t OrderTransaction) UnitCost() decimal.Decimal {
	if t.Quantity == 0 {
		return decimal.Zero
	}
	return t.Amount.Abs().Div(decimal.NewFromInt(t.AbsQuantity()))
}

// IsBuy reports whether the transaction is a buy.
func (t OrderTransaction) IsBuy() bool {
	return t.Direction == DirectionBuy
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LongTermDays is the holding period, in whole days, above which a gain is
// treated as long term.
const LongTermDays = 365

// MatchedTrade is a closed round trip built from one offsetting buy and sell.
type MatchedTrade struct {
	ID               string
	Symbol           string
	Broker           string
	Quantity         int64
	DateAcquired     time.Time
	DateDisposed     time.Time
	Proceeds         decimal.Decimal
	CostOrBasis      decimal.Decimal
	AdjustmentAmount decimal.Decimal
	CumulativeProfit decimal.Decimal
	Commission       decimal.Decimal
	Fees             decimal.Decimal
	BuyOrderID       int64
	SellOrderID      int64
	LongTermGain     bool
}

// GainOrLoss returns Proceeds - CostOrBasis + AdjustmentAmount.
func (t MatchedTrade) GainOrLoss() decimal.Decimal {
	return t.Proceeds.Sub(t.CostOrBasis).Add(t.AdjustmentAmount)
}

// HoldingPeriod returns the time between acquisition and disposal. It is
// negative for short trades, where the sell came first.
func (t MatchedTrade) HoldingPeriod() time.Duration {
	return t.DateDisposed.Sub(t.DateAcquired)
}

// IsShort reports whether the position was opened by the sell leg.
func (t MatchedTrade) IsShort() bool {
	return t.DateDisposed.Before(t.DateAcquired)
}

// IsWin reports whether the trade closed with a positive gain.
func (t MatchedTrade) IsWin() bool {
	return t.GainOrLoss().IsPositive()
}

// HeldDays returns the whole number of days between the two legs.
func HeldDays(acquired, disposed time.Time) int64 {
	return int64(disposed.Sub(acquired) / (24 * time.Hour))
}

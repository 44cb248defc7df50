// Package factory turns host fill events into order transactions.
package factory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/models"
)

// Clock returns the current time.
type Clock func() time.Time

// Factory converts fills into OrderTransactions. It holds no state between
// calls.
type Factory struct {
	Broker         string
	Fees           FeeModel
	Clock          Clock
	SettlementDays int
}

// New creates a factory with the given broker name and fee model.
func New(broker string, fees FeeModel, settlementDays int) *Factory {
	if fees == nil {
		fees = ZeroFeeModel{}
	}
	return &Factory{
		Broker:         broker,
		Fees:           fees,
		Clock:          time.Now,
		SettlementDays: settlementDays,
	}
}

// FromFill builds the transaction for one fill. Buys get a negative amount,
// sells a positive one; commission and fees are never positive.
func (f *Factory) FromFill(fill models.Fill) (models.OrderTransaction, error) {
	if fill.Symbol == "" {
		return models.OrderTransaction{}, apperrors.NewFillError("symbol", fill.Symbol, "symbol is required")
	}
	if fill.Quantity == 0 {
		return models.OrderTransaction{}, apperrors.NewFillError("quantity", fill.Quantity, "fill quantity must be non-zero")
	}
	if !fill.Price.IsPositive() {
		return models.OrderTransaction{}, apperrors.NewFillError("price", fill.Price, "fill price must be positive")
	}

	tradeDate := fill.Time
	if tradeDate.IsZero() {
		tradeDate = f.now()
	}

	direction := fill.Direction()
	return models.OrderTransaction{
		Symbol:      fill.Symbol,
		Exchange:    fill.Exchange,
		Broker:      f.Broker,
		Description: fmt.Sprintf("%s %d %s @ %s", direction, abs(fill.Quantity), fill.Symbol, fill.Price.StringFixed(2)),
		Direction:   direction,
		OrderID:     fill.OrderID,
		Quantity:    fill.Quantity,
		UnitPrice:   fill.Price,
		Amount:      fill.Price.Mul(decimal.NewFromInt(-fill.Quantity)),
		Commission:  f.commission(fill),
		Fees:        f.fees(fill),
		TradeDate:   tradeDate,
		SettledDate: AddBusinessDays(tradeDate, f.SettlementDays),
	}, nil
}

func (f *Factory) commission(fill models.Fill) decimal.Decimal {
	if f.Fees == nil {
		return decimal.Zero
	}
	return f.Fees.Commission(fill).Abs().Neg()
}

func (f *Factory) fees(fill models.Fill) decimal.Decimal {
	if f.Fees == nil {
		return decimal.Zero
	}
	return f.Fees.Fees(fill).Abs().Neg()
}

func (f *Factory) now() time.Time {
	if f.Clock == nil {
		return time.Now()
	}
	return f.Clock()
}

// AddBusinessDays adds n weekdays to t, skipping Saturdays and Sundays.
func AddBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

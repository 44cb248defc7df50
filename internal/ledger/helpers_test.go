package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/models"
)

var baseTime = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

// newTx builds a transaction following the cash-flow sign convention.
// qty is signed; price and commission are given as strings.
func newTx(symbol string, orderID, qty int64, price, commission string, at time.Time) models.OrderTransaction {
	p := decimal.RequireFromString(price)
	return models.OrderTransaction{
		Symbol:      symbol,
		Broker:      "IB",
		Direction:   models.DirectionOf(qty),
		OrderID:     orderID,
		Quantity:    qty,
		UnitPrice:   p,
		Amount:      p.Mul(decimal.NewFromInt(-qty)),
		Commission:  decimal.RequireFromString(commission),
		Fees:        decimal.Zero,
		TradeDate:   at,
		SettledDate: at.AddDate(0, 0, 2),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("T%d", n)
	}
}

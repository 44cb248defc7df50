// Package models provides domain models for the trade reconciler.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the side of an order transaction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (d Direction) Sign() int64 {
	if d == DirectionBuy {
		return 1
	}
	return -1
}

// Opposite returns the offsetting direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// IsValid reports whether d is one of the known directions.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// DirectionOf returns the direction implied by a signed quantity.
func DirectionOf(quantity int64) Direction {
	if quantity < 0 {
		return DirectionSell
	}
	return DirectionBuy
}

// Fill is an execution report handed in by the host engine.
// Quantity is signed: positive for buys, negative for sells.
type Fill struct {
	Symbol   string
	OrderID  int64
	Quantity int64
	Price    decimal.Decimal
	Time     time.Time
	Exchange string
}

// Direction returns the direction implied by the fill quantity.
func (f Fill) Direction() Direction {
	return DirectionOf(f.Quantity)
}

// Value returns the absolute traded value of the fill.
func (f Fill) Value() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity)).Abs()
}

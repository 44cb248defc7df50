package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/models"
)

// Pair is a buy and a sell of equal absolute quantity, ready to become a
// MatchedTrade.
type Pair struct {
	Buy  models.OrderTransaction
	Sell models.OrderTransaction
}

// Split divides tx into a leg of qty units (absolute) and the remainder.
//
// Both legs keep tx's unit cost. The matched leg carries the whole commission
// and fees; the remainder carries none. Quantity and gross amount are
// conserved: matched + remainder == tx. qty must lie strictly between zero
// and |tx.Quantity|.
func Split(tx models.OrderTransaction, qty int64) (matched, remainder models.OrderTransaction, err error) {
	if qty <= 0 || qty >= tx.AbsQuantity() {
		return tx, models.OrderTransaction{}, apperrors.NewAccountingError(tx.Symbol, "split-quantity",
			0, 0, fmt.Sprintf("cannot split %d units out of order #%d (quantity %d)", qty, tx.OrderID, tx.Quantity))
	}

	sign := tx.Direction.Sign()
	amount := tx.UnitCost().Mul(decimal.NewFromInt(qty))
	if tx.Amount.IsNegative() {
		amount = amount.Neg()
	}

	matched = tx
	matched.Quantity = sign * qty
	matched.Amount = amount

	remainder = tx
	remainder.Quantity = tx.Quantity - matched.Quantity
	remainder.Amount = tx.Amount.Sub(amount)
	remainder.Commission = decimal.Zero
	remainder.Fees = decimal.Zero

	return matched, remainder, nil
}

// Resolve matches tx against the opposite side of inv, splitting lots where
// quantities differ. Any unmatched quantity is left in inv: either the rest of
// tx, or the rest of the last lot it consumed. inv is mutated; callers that
// need atomicity pass a clone.
func Resolve(inv *inventory.Inventory, tx models.OrderTransaction) ([]Pair, error) {
	lot, ok := inv.Remove(tx.Direction.Opposite())
	if !ok {
		inv.Add(tx)
		return nil, nil
	}

	incoming, resting := tx.AbsQuantity(), lot.AbsQuantity()
	switch {
	case incoming == resting:
		p, err := newPair(tx, lot)
		if err != nil {
			return nil, err
		}
		return []Pair{p}, nil

	case incoming > resting:
		matched, rest, err := Split(tx, resting)
		if err != nil {
			return nil, err
		}
		p, err := newPair(matched, lot)
		if err != nil {
			return nil, err
		}
		pairs, err := Resolve(inv, rest)
		if err != nil {
			return nil, err
		}
		return append([]Pair{p}, pairs...), nil

	default:
		matched, rest, err := Split(lot, incoming)
		if err != nil {
			return nil, err
		}
		p, err := newPair(tx, matched)
		if err != nil {
			return nil, err
		}
		if inv.Count(rest.Direction.Opposite()) > 0 {
			pairs, err := Resolve(inv, rest)
			if err != nil {
				return nil, err
			}
			return append([]Pair{p}, pairs...), nil
		}
		inv.Return(rest)
		return []Pair{p}, nil
	}
}

func newPair(a, b models.OrderTransaction) (Pair, error) {
	if a.Direction == b.Direction {
		return Pair{}, apperrors.NewAccountingError(a.Symbol, "pair-direction", a.OrderID, b.OrderID,
			fmt.Sprintf("both legs are %s", a.Direction))
	}
	if a.AbsQuantity() != b.AbsQuantity() {
		return Pair{}, apperrors.NewAccountingError(a.Symbol, "pair-quantity", a.OrderID, b.OrderID,
			fmt.Sprintf("leg quantities differ: %d vs %d", a.Quantity, b.Quantity))
	}
	if a.IsBuy() {
		return Pair{Buy: a, Sell: b}, nil
	}
	return Pair{Buy: b, Sell: a}, nil
}

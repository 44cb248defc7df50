// Package inventory tracks unmatched buy and sell lots for a single symbol.
package inventory

import (
	"fmt"
	"strings"

	"trade-reconciler/internal/models"
)

// Discipline selects which open lot is closed first.
type Discipline int

const (
	// LIFO closes the most recently added lot first.
	LIFO Discipline = iota
	// FIFO closes the oldest lot first.
	FIFO
)

// DefaultDiscipline is used when no discipline is configured.
const DefaultDiscipline = LIFO

func (d Discipline) String() string {
	switch d {
	case FIFO:
		return "FIFO"
	case LIFO:
		return "LIFO"
	default:
		return fmt.Sprintf("Discipline(%d)", int(d))
	}
}

// ParseDiscipline parses "fifo" or "lifo" (case-insensitive).
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIFO":
		return FIFO, nil
	case "LIFO", "":
		return LIFO, nil
	default:
		return DefaultDiscipline, fmt.Errorf("unknown matching discipline %q (must be 'fifo' or 'lifo')", s)
	}
}

// Inventory holds the unmatched transactions of one symbol, in arrival order.
// It is not safe for concurrent use.
type Inventory struct {
	symbol     string
	discipline Discipline
	buys       []models.OrderTransaction
	sells      []models.OrderTransaction
}

// New creates an empty inventory for symbol.
func New(symbol string, discipline Discipline) *Inventory {
	return &Inventory{
		symbol:     symbol,
		discipline: discipline,
	}
}

// Symbol returns the symbol the inventory tracks.
func (inv *Inventory) Symbol() string {
	return inv.symbol
}

// Discipline returns the matching discipline.
func (inv *Inventory) Discipline() Discipline {
	return inv.discipline
}

// Add appends tx to the buy or sell side according to its direction.
func (inv *Inventory) Add(tx models.OrderTransaction) {
	if tx.IsBuy() {
		inv.buys = append(inv.buys, tx)
	} else {
		inv.sells = append(inv.sells, tx)
	}
}

// RemoveBuy removes the next buy lot. ok is false when there is none.
func (inv *Inventory) RemoveBuy() (tx models.OrderTransaction, ok bool) {
	tx, inv.buys, ok = inv.take(inv.buys)
	return tx, ok
}

// RemoveSell removes the next sell lot. ok is false when there is none.
func (inv *Inventory) RemoveSell() (tx models.OrderTransaction, ok bool) {
	tx, inv.sells, ok = inv.take(inv.sells)
	return tx, ok
}

// ReturnBuy puts tx back so that it is the next buy lot removed.
func (inv *Inventory) ReturnBuy(tx models.OrderTransaction) {
	inv.buys = inv.putBack(inv.buys, tx)
}

// ReturnSell puts tx back so that it is the next sell lot removed.
func (inv *Inventory) ReturnSell(tx models.OrderTransaction) {
	inv.sells = inv.putBack(inv.sells, tx)
}

// Return puts tx back on its own side so that it is removed next.
func (inv *Inventory) Return(tx models.OrderTransaction) {
	if tx.IsBuy() {
		inv.ReturnBuy(tx)
	} else {
		inv.ReturnSell(tx)
	}
}

func (inv *Inventory) take(side []models.OrderTransaction) (models.OrderTransaction, []models.OrderTransaction, bool) {
	if len(side) == 0 {
		return models.OrderTransaction{}, side, false
	}
	if inv.discipline == FIFO {
		tx := side[0]
		return tx, side[1:], true
	}
	last := len(side) - 1
	return side[last], side[:last], true
}

func (inv *Inventory) putBack(side []models.OrderTransaction, tx models.OrderTransaction) []models.OrderTransaction {
	if inv.discipline == FIFO {
		return append([]models.OrderTransaction{tx}, side...)
	}
	return append(side, tx)
}

// BuysCount returns the number of unmatched buy lots.
func (inv *Inventory) BuysCount() int {
	return len(inv.buys)
}

// SellsCount returns the number of unmatched sell lots.
func (inv *Inventory) SellsCount() int {
	return len(inv.sells)
}

// Count returns the number of unmatched lots on the given side.
func (inv *Inventory) Count(d models.Direction) int {
	if d == models.DirectionBuy {
		return len(inv.buys)
	}
	return len(inv.sells)
}

// Remove removes the next lot from the given side.
func (inv *Inventory) Remove(d models.Direction) (models.OrderTransaction, bool) {
	if d == models.DirectionBuy {
		return inv.RemoveBuy()
	}
	return inv.RemoveSell()
}

// IsFlat reports whether both sides are empty.
func (inv *Inventory) IsFlat() bool {
	return len(inv.buys) == 0 && len(inv.sells) == 0
}

// NetQuantity returns the signed sum of all unmatched quantities.
func (inv *Inventory) NetQuantity() int64 {
	var net int64
	for _, tx := range inv.buys {
		net += tx.Quantity
	}
	for _, tx := range inv.sells {
		net += tx.Quantity
	}
	return net
}

// Buys returns a copy of the unmatched buys in arrival order.
func (inv *Inventory) Buys() []models.OrderTransaction {
	return append([]models.OrderTransaction(nil), inv.buys...)
}

// Sells returns a copy of the unmatched sells in arrival order.
func (inv *Inventory) Sells() []models.OrderTransaction {
	return append([]models.OrderTransaction(nil), inv.sells...)
}

// Clone returns an independent copy of the inventory.
func (inv *Inventory) Clone() *Inventory {
	return &Inventory{
		symbol:     inv.symbol,
		discipline: inv.discipline,
		buys:       inv.Buys(),
		sells:      inv.Sells(),
	}
}

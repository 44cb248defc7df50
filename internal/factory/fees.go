package factory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/models"
)

// FeeModel prices the commission and regulatory fees of a fill. Returned
// values are magnitudes; the factory applies the sign convention.
type FeeModel interface {
	Commission(fill models.Fill) decimal.Decimal
	Fees(fill models.Fill) decimal.Decimal
}

// ZeroFeeModel charges nothing.
type ZeroFeeModel struct{}

// Commission returns zero.
func (ZeroFeeModel) Commission(models.Fill) decimal.Decimal { return decimal.Zero }

// Fees returns zero.
func (ZeroFeeModel) Fees(models.Fill) decimal.Decimal { return decimal.Zero }

// FlatFeeModel charges a fixed commission per fill.
type FlatFeeModel struct {
	PerOrder      decimal.Decimal
	RegulatoryFee RegulatoryFee
}

// Commission returns the fixed per-order charge.
func (m FlatFeeModel) Commission(models.Fill) decimal.Decimal {
	return m.PerOrder.Abs()
}

// Fees returns the regulatory fee, if any.
func (m FlatFeeModel) Fees(fill models.Fill) decimal.Decimal {
	return m.RegulatoryFee.For(fill)
}

// PerShareFeeModel charges a rate per share, bounded below by Minimum and
// above by MaxPercent of the traded value.
type PerShareFeeModel struct {
	PerShare      decimal.Decimal
	Minimum       decimal.Decimal
	MaxPercent    decimal.Decimal // e.g. 0.01 for 1% of trade value; zero disables the cap
	RegulatoryFee RegulatoryFee
}

// DefaultPerShareFeeModel returns the tiered US equity schedule most
// strategies were backtested with: $0.005/share, $1 minimum, 1% cap.
func DefaultPerShareFeeModel() PerShareFeeModel {
	return PerShareFeeModel{
		PerShare:   decimal.New(5, -3),
		Minimum:    decimal.NewFromInt(1),
		MaxPercent: decimal.New(1, -2),
	}
}

// Commission applies the per-share rate with its minimum and cap.
func (m PerShareFeeModel) Commission(fill models.Fill) decimal.Decimal {
	qty := fill.Quantity
	if qty < 0 {
		qty = -qty
	}
	fee := m.PerShare.Abs().Mul(decimal.NewFromInt(qty))
	if fee.LessThan(m.Minimum) {
		fee = m.Minimum
	}
	if m.MaxPercent.IsPositive() {
		maxFee := fill.Value().Mul(m.MaxPercent)
		if fee.GreaterThan(maxFee) {
			fee = maxFee
		}
	}
	return fee.Round(2)
}

// Fees returns the regulatory fee, if any.
func (m PerShareFeeModel) Fees(fill models.Fill) decimal.Decimal {
	return m.RegulatoryFee.For(fill)
}

// RegulatoryFee is a rate on traded value charged on sells only.
type RegulatoryFee struct {
	Rate decimal.Decimal
}

// For returns the fee owed on fill, rounded up to the cent.
func (r RegulatoryFee) For(fill models.Fill) decimal.Decimal {
	if !r.Rate.IsPositive() || fill.Direction() != models.DirectionSell {
		return decimal.Zero
	}
	return fill.Value().Mul(r.Rate).RoundCeil(2)
}

// FeeModelConfig describes a fee model by name.
type FeeModelConfig struct {
	Model          string
	PerOrder       float64
	PerShare       float64
	Minimum        float64
	MaxPercent     float64
	RegulatoryRate float64
}

// NewFeeModel builds the fee model named by cfg.Model: "zero", "flat" or
// "per_share".
func NewFeeModel(cfg FeeModelConfig) (FeeModel, error) {
	reg := RegulatoryFee{Rate: decimal.NewFromFloat(cfg.RegulatoryRate)}

	switch strings.ToLower(cfg.Model) {
	case "", "zero", "none":
		return ZeroFeeModel{}, nil
	case "flat":
		return FlatFeeModel{
			PerOrder:      decimal.NewFromFloat(cfg.PerOrder),
			RegulatoryFee: reg,
		}, nil
	case "per_share", "per-share":
		m := DefaultPerShareFeeModel()
		if cfg.PerShare > 0 {
			m.PerShare = decimal.NewFromFloat(cfg.PerShare)
		}
		if cfg.Minimum > 0 {
			m.Minimum = decimal.NewFromFloat(cfg.Minimum)
		}
		if cfg.MaxPercent > 0 {
			m.MaxPercent = decimal.NewFromFloat(cfg.MaxPercent)
		}
		m.RegulatoryFee = reg
		return m, nil
	default:
		return nil, fmt.Errorf("unknown fee model %q", cfg.Model)
	}
}

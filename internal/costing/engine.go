// Package costing computes consumption costs for outbound stock movements.
// All functions are pure: they operate on layers handed in by the caller and
// never touch storage themselves.
package costing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Layer is one inbound ledger entry viewed as a costing layer. Layers must be
// supplied ordered oldest-first by transaction date, with ledger insertion
// order breaking ties on equal dates.
type Layer struct {
	Date     time.Time
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
}

// ErrInsufficientLayers indicates the recorded inbound layers cannot satisfy
// the requested quantity. The posting engine decides whether this is fatal
// based on the negative-stock policy.
var ErrInsufficientLayers = errors.New("costing: insufficient layers for requested quantity")

// ErrInvalidQuantity indicates a non-positive consumption quantity.
var ErrInvalidQuantity = errors.New("costing: quantity must be positive")

const waPrecision = 6

// FIFOCost prices qty against the oldest unconsumed layers. consumed is the
// total outbound quantity already drawn from this scope; it is skipped from
// the front of the layer list before pricing begins.
func FIFOCost(layers []Layer, consumed, qty decimal.Decimal) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}
	if consumed.IsNegative() {
		consumed = decimal.Zero
	}

	remaining := qty
	cost := decimal.Zero
	for _, layer := range layers {
		available := layer.Qty
		if consumed.IsPositive() {
			if consumed.GreaterThanOrEqual(available) {
				consumed = consumed.Sub(available)
				continue
			}
			available = available.Sub(consumed)
			consumed = decimal.Zero
		}
		take := decimal.Min(available, remaining)
		cost = cost.Add(take.Mul(layer.UnitCost))
		remaining = remaining.Sub(take)
		if remaining.IsZero() {
			return cost, nil
		}
	}
	return cost, ErrInsufficientLayers
}

// WeightedAverage returns the quantity-weighted average unit cost over all
// inbound layers, rounded to six decimal places. Zero when no layers exist.
func WeightedAverage(layers []Layer) decimal.Decimal {
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, layer := range layers {
		totalQty = totalQty.Add(layer.Qty)
		totalCost = totalCost.Add(layer.Qty.Mul(layer.UnitCost))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalCost.DivRound(totalQty, waPrecision)
}

// AllocateLanded distributes total proportionally to each quantity's share.
// Shares are rounded to four decimal places and the rounding remainder is
// folded into the last line, so the allocated sum always equals total.
func AllocateLanded(total decimal.Decimal, qtys []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(qtys))
	if len(qtys) == 0 {
		return shares
	}
	sumQty := decimal.Zero
	for _, q := range qtys {
		sumQty = sumQty.Add(q)
	}
	if sumQty.IsZero() || total.IsZero() {
		return shares
	}
	allocated := decimal.Zero
	for i, q := range qtys[:len(qtys)-1] {
		share := total.Mul(q).DivRound(sumQty, 4)
		shares[i] = share
		allocated = allocated.Add(share)
	}
	shares[len(qtys)-1] = total.Sub(allocated)
	return shares
}

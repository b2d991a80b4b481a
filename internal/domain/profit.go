package domain

import "github.com/shopspring/decimal"

// ProfitMode governs how much of a lot a triggered sell liquidates.
type ProfitMode string

const (
	// ProfitTake sells the whole lot; profit is realized as cash.
	ProfitTake ProfitMode = "TAKE"
	// ProfitLeave sells only enough shares to recover the cost basis,
	// leaving the profit portion invested.
	ProfitLeave ProfitMode = "LEAVE"
)

// SellQuantity computes the share count to sell for a lot at the given price.
// Under LEAVE the quantity is cost_basis/price clamped to the lot size, so a
// price at or below the buy price degenerates to a full sell.
func SellQuantity(lot Lot, price decimal.Decimal, mode ProfitMode) decimal.Decimal {
	if mode != ProfitLeave {
		return lot.Quantity
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return lot.Quantity
	}

	qty := lot.CostBasis().Div(price)
	if qty.GreaterThan(lot.Quantity) {
		return lot.Quantity
	}
	return qty
}

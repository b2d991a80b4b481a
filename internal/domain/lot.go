// Package domain defines core data structures used throughout the grid bot.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is one discrete purchase batch for a symbol. A lot never mutates after
// creation; profit-share retention re-books a fresh lot instead.
type Lot struct {
	ID       string          `json:"id"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	Quantity decimal.Decimal `json:"quantity"`
	Time     time.Time       `json:"timestamp"`
}

// NewLot creates a validated lot with a fresh identifier.
func NewLot(buyPrice, quantity decimal.Decimal, t time.Time) (Lot, error) {
	if buyPrice.LessThanOrEqual(decimal.Zero) {
		return Lot{}, fmt.Errorf("buy price must be positive, got %s", buyPrice.String())
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return Lot{}, fmt.Errorf("quantity must be positive, got %s", quantity.String())
	}

	return Lot{
		ID:       uuid.New().String(),
		BuyPrice: buyPrice,
		Quantity: quantity,
		Time:     t,
	}, nil
}

// CostBasis returns the quote amount originally spent on the lot.
func (l *Lot) CostBasis() decimal.Decimal {
	return l.BuyPrice.Mul(l.Quantity)
}

// LowestBuyPrice returns the minimum buy price across lots.
// The second return value is false when the slice is empty.
func LowestBuyPrice(lots []Lot) (decimal.Decimal, bool) {
	if len(lots) == 0 {
		return decimal.Zero, false
	}

	lowest := lots[0].BuyPrice
	for _, lot := range lots[1:] {
		if lot.BuyPrice.LessThan(lowest) {
			lowest = lot.BuyPrice
		}
	}
	return lowest, true
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is one executed (or simulated) fill, as recorded in the trade
// feed consumed by the dashboard.
type TradeEvent struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	DryRun   bool            `json:"dry_run"`
	Time     time.Time       `json:"time"`
}

// String returns a human-readable string representation.
func (t *TradeEvent) String() string {
	return fmt.Sprintf("%s %s %s @ %s", t.Side, t.Quantity.String(), t.Symbol, t.Price.String())
}

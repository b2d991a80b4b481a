// Package broker defines the brokerage surface the bot trades through.
package broker

import (
	"context"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRef identifies a placed order. DryRun refs never reach the broker and
// cannot be looked up there.
type OrderRef struct {
	ID     string
	DryRun bool
}

// Execution is the observed fill of an order.
type Execution struct {
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// Broker is the brokerage connection used by the bot. Buy quantities are
// quote-currency notional; sell quantities are share counts. Every call that
// can hit the network takes a context.
type Broker interface {
	// IsMarketOpen reports whether the exchange currently accepts orders.
	IsMarketOpen(ctx context.Context) (bool, error)

	// Prices returns last traded prices for the given symbols. Symbols the
	// broker cannot quote are absent from the result rather than an error.
	Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)

	// Price returns the last traded price for one symbol.
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)

	// AccountEquity returns the total account value.
	AccountEquity(ctx context.Context) (decimal.Decimal, error)

	// AccountCash returns the free cash available for new orders.
	AccountCash(ctx context.Context) (decimal.Decimal, error)

	// PlaceOrder submits a market order. With dryRun set the order is only
	// simulated and the returned ref is marked accordingly.
	PlaceOrder(ctx context.Context, symbol string, side Side, quantity decimal.Decimal, dryRun bool) (OrderRef, error)

	// LastExecution returns the fill for a previously placed order. The bool
	// is false while the order has not (yet) filled.
	LastExecution(ctx context.Context, ref OrderRef) (Execution, bool, error)

	// CancelAllOrders cancels every open order on the account.
	CancelAllOrders(ctx context.Context) error

	// CloseAllPositions liquidates every open position at market.
	CloseAllPositions(ctx context.Context) error

	// TradeableAssets returns all symbols the broker can trade.
	TradeableAssets(ctx context.Context) ([]string, error)
}

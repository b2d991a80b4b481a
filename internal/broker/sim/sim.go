// Package sim is an offline brokerage simulator. Prices follow a random walk
// around a per-symbol base, orders fill instantly at the current price, and
// the market never closes. It exists so the bot can run end to end with no
// credentials.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultStartingCash = 10000
	walkStepPercent     = 0.4
)

// Broker is an in-memory brokerage simulator.
type Broker struct {
	mu        sync.Mutex
	logger    *zap.Logger
	prices    map[string]decimal.Decimal
	positions map[string]decimal.Decimal
	orders    map[string]broker.Execution
	cash      decimal.Decimal
	rng       *rand.Rand
}

// New creates a simulator seeded with the given symbols.
func New(symbols []string, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}

	rng := rand.New(rand.NewSource(42))
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		base := 50 + rng.Float64()*950
		prices[symbol] = decimal.NewFromFloat(base).Round(2)
	}

	return &Broker{
		logger:    logger,
		prices:    prices,
		positions: make(map[string]decimal.Decimal),
		orders:    make(map[string]broker.Execution),
		cash:      decimal.NewFromInt(defaultStartingCash),
		rng:       rng,
	}
}

// IsMarketOpen always reports an open market.
func (b *Broker) IsMarketOpen(ctx context.Context) (bool, error) {
	return true, nil
}

// Prices advances the random walk one step and returns the new quotes.
func (b *Broker) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = b.stepLocked(symbol)
	}
	return out, nil
}

// Price returns the quote for a single symbol.
func (b *Broker) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stepLocked(symbol), nil
}

// AccountEquity returns cash plus the market value of open positions.
func (b *Broker) AccountEquity(ctx context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for symbol, qty := range b.positions {
		if price, ok := b.prices[symbol]; ok {
			equity = equity.Add(qty.Mul(price))
		}
	}
	return equity, nil
}

// AccountCash returns the free cash balance.
func (b *Broker) AccountCash(ctx context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.cash, nil
}

// PlaceOrder fills the order instantly at the current simulated price.
func (b *Broker) PlaceOrder(ctx context.Context, symbol string, side broker.Side, quantity decimal.Decimal, dryRun bool) (broker.OrderRef, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return broker.OrderRef{}, fmt.Errorf("order quantity must be positive, got %s", quantity.String())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price := b.stepLocked(symbol)
	ref := broker.OrderRef{ID: uuid.New().String(), DryRun: dryRun}

	var shares decimal.Decimal
	switch side {
	case broker.SideBuy:
		// buy quantity is quote notional
		shares = quantity.Div(price)
		if !dryRun {
			b.cash = b.cash.Sub(quantity)
			b.positions[symbol] = b.positions[symbol].Add(shares)
		}
	case broker.SideSell:
		shares = quantity
		if !dryRun {
			b.cash = b.cash.Add(shares.Mul(price))
			b.positions[symbol] = b.positions[symbol].Sub(shares)
			if b.positions[symbol].LessThanOrEqual(decimal.Zero) {
				delete(b.positions, symbol)
			}
		}
	default:
		return broker.OrderRef{}, fmt.Errorf("unknown order side %q", side)
	}

	b.orders[ref.ID] = broker.Execution{Quantity: shares, AvgPrice: price}
	b.logger.Info("simulated order filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()),
		zap.Bool("dry_run", dryRun))

	return ref, nil
}

// LastExecution returns the recorded fill for a previously placed order.
func (b *Broker) LastExecution(ctx context.Context, ref broker.OrderRef) (broker.Execution, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exec, ok := b.orders[ref.ID]
	return exec, ok, nil
}

// CancelAllOrders is a no-op; simulated orders fill instantly.
func (b *Broker) CancelAllOrders(ctx context.Context) error {
	return nil
}

// CloseAllPositions sells every open position at the current price.
func (b *Broker) CloseAllPositions(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for symbol, qty := range b.positions {
		price := b.stepLocked(symbol)
		b.cash = b.cash.Add(qty.Mul(price))
		delete(b.positions, symbol)
	}
	return nil
}

// TradeableAssets returns every symbol the simulator quotes.
func (b *Broker) TradeableAssets(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbols := make([]string, 0, len(b.prices))
	for symbol := range b.prices {
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}

// stepLocked moves the symbol's price by up to walkStepPercent in either
// direction. Unknown symbols get a fresh base price first.
func (b *Broker) stepLocked(symbol string) decimal.Decimal {
	price, ok := b.prices[symbol]
	if !ok {
		price = decimal.NewFromFloat(50 + b.rng.Float64()*950).Round(2)
	}

	step := (b.rng.Float64()*2 - 1) * walkStepPercent / 100
	next := price.Mul(decimal.NewFromFloat(1 + step)).Round(2)
	if next.LessThanOrEqual(decimal.Zero) {
		next = price
	}

	b.prices[symbol] = next
	return next
}

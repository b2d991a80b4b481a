// Package executor turns trigger proposals into broker orders and ledger
// mutations. The ordering invariant is strict: the ledger only changes after
// the broker accepted the order, so a failed placement leaves no trace.
package executor

import (
	"context"
	"time"

	"github.com/pasiu/gridbot/config"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/pasiu/gridbot/internal/domain"
	"github.com/pasiu/gridbot/internal/storage/ledger"
	"github.com/pasiu/gridbot/internal/storage/trades"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Executor coordinates order placement with the lot ledger and trade feed.
type Executor struct {
	broker broker.Broker
	ledger *ledger.Store
	trades *trades.WALStore
	logger *zap.Logger
}

// New creates an executor.
func New(b broker.Broker, l *ledger.Store, t *trades.WALStore, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{broker: b, ledger: l, trades: t, logger: logger}
}

// ExecuteBuy places a notional market buy and books the resulting lot. When a
// live fill is observable the lot carries the actual fill quantity and price;
// otherwise (dry runs, orders still pending) the lot is approximated as
// amount/price, matching what a market order should fill near.
func (e *Executor) ExecuteBuy(ctx context.Context, cfg config.Config, symbol string, price, amount decimal.Decimal) (domain.Lot, error) {
	ref, err := e.broker.PlaceOrder(ctx, symbol, broker.SideBuy, amount, cfg.DryRun)
	if err != nil {
		return domain.Lot{}, errors.Wrapf(err, "place buy order for %s", symbol)
	}

	lotPrice := price
	lotQty := decimal.Zero
	if price.GreaterThan(decimal.Zero) {
		lotQty = amount.Div(price)
	}

	if !ref.DryRun {
		exec, filled, execErr := e.broker.LastExecution(ctx, ref)
		if execErr != nil {
			e.logger.Warn("failed to confirm buy fill, booking approximate lot",
				zap.String("symbol", symbol),
				zap.String("order_id", ref.ID),
				zap.Error(execErr))
		} else if filled && exec.Quantity.GreaterThan(decimal.Zero) && exec.AvgPrice.GreaterThan(decimal.Zero) {
			lotQty = exec.Quantity
			lotPrice = exec.AvgPrice
		}
	}

	lot, err := e.ledger.AddLot(symbol, lotPrice, lotQty)
	if err != nil {
		return domain.Lot{}, errors.Wrapf(err, "book lot for %s", symbol)
	}

	e.recordTrade(domain.TradeEvent{
		Symbol:   symbol,
		Side:     string(broker.SideBuy),
		Quantity: lot.Quantity,
		Price:    lot.BuyPrice,
		DryRun:   ref.DryRun,
		Time:     time.Now().UTC(),
	})

	e.logger.Info("buy executed",
		zap.String("symbol", symbol),
		zap.String("quantity", lot.Quantity.String()),
		zap.String("price", lot.BuyPrice.String()),
		zap.Bool("dry_run", ref.DryRun))

	return lot, nil
}

// ExecuteSell liquidates the addressed lot. Under LEAVE with profit shares
// kept, only the cost-recovering portion is sold and the remainder is
// re-booked as a fresh lot at the current price.
func (e *Executor) ExecuteSell(ctx context.Context, cfg config.Config, symbol, lotID string, price decimal.Decimal) error {
	lot, ok := e.ledger.Lot(symbol, lotID)
	if !ok {
		return errors.Errorf("lot %s not found for %s", lotID, symbol)
	}

	sellQty := domain.SellQuantity(lot, price, cfg.ProfitMode)
	if sellQty.LessThanOrEqual(decimal.Zero) {
		return errors.Errorf("computed sell quantity for lot %s is not positive", lotID)
	}

	ref, err := e.broker.PlaceOrder(ctx, symbol, broker.SideSell, sellQty, cfg.DryRun)
	if err != nil {
		return errors.Wrapf(err, "place sell order for %s", symbol)
	}

	e.ledger.RemoveLot(symbol, lotID)

	remainder := lot.Quantity.Sub(sellQty)
	if cfg.ProfitMode == domain.ProfitLeave && cfg.KeepProfitShares && remainder.GreaterThan(decimal.Zero) {
		if _, err := e.ledger.AddLot(symbol, price, remainder); err != nil {
			e.logger.Warn("failed to re-book profit shares",
				zap.String("symbol", symbol),
				zap.String("remainder", remainder.String()),
				zap.Error(err))
		}
	}

	e.recordTrade(domain.TradeEvent{
		Symbol:   symbol,
		Side:     string(broker.SideSell),
		Quantity: sellQty,
		Price:    price,
		DryRun:   ref.DryRun,
		Time:     time.Now().UTC(),
	})

	e.logger.Info("sell executed",
		zap.String("symbol", symbol),
		zap.String("lot_id", lotID),
		zap.String("quantity", sellQty.String()),
		zap.String("price", price.String()),
		zap.String("profit_mode", string(cfg.ProfitMode)),
		zap.Bool("dry_run", ref.DryRun))

	return nil
}

// recordTrade appends to the trade feed. The feed is advisory; a write
// failure must not undo an executed trade.
func (e *Executor) recordTrade(event domain.TradeEvent) {
	if e.trades == nil {
		return
	}
	if err := e.trades.Save(event); err != nil {
		e.logger.Error("failed to record trade event",
			zap.String("symbol", event.Symbol), zap.Error(err))
	}
}

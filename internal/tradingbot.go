package internal

import (
	"context"
	"time"

	"github.com/pasiu/gridbot/config"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/pasiu/gridbot/internal/domain"
	"github.com/pasiu/gridbot/internal/services/executor"
	"github.com/pasiu/gridbot/internal/services/stake"
	"github.com/pasiu/gridbot/internal/storage/ledger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// priceBatchSize caps how many symbols go into one quote request.
const priceBatchSize = 200

// TradingBot runs the poll loop: load config, fetch prices, evaluate every
// symbol, execute the proposed trades.
type TradingBot struct {
	cfgStore *config.Store
	broker   broker.Broker
	ledger   *ledger.Store
	executor *executor.Executor
	stake    *stake.Calculator
	logger   *zap.Logger
}

// NewTradingBot creates a trading bot instance.
func NewTradingBot(cfgStore *config.Store, b broker.Broker, l *ledger.Store, e *executor.Executor, s *stake.Calculator, logger *zap.Logger) *TradingBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradingBot{
		cfgStore: cfgStore,
		broker:   b,
		ledger:   l,
		executor: e,
		stake:    s,
		logger:   logger,
	}
}

// Run executes poll cycles until the context is cancelled. The configuration
// is re-read each cycle, so the interval and every strategy parameter can
// change between cycles without a restart. A failed or panicking cycle is
// logged and the loop continues.
func (b *TradingBot) Run(ctx context.Context) error {
	b.logger.Info("starting trading loop")

	for {
		cfg := b.cfgStore.Load()

		if err := b.runCycle(ctx, cfg); err != nil {
			b.logger.Error("trading cycle failed", zap.Error(err))
		}

		timer := time.NewTimer(cfg.CheckInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			b.logger.Info("context done, stopping trading loop")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runCycle evaluates and trades every configured symbol once.
func (b *TradingBot) runCycle(ctx context.Context, cfg config.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("trading cycle panicked: %v", r)
		}
	}()

	open, openErr := b.broker.IsMarketOpen(ctx)
	if openErr != nil {
		b.logger.Warn("failed to check market clock, proceeding anyway", zap.Error(openErr))
		open = true
	}
	if !open {
		// the broker queues orders placed outside market hours, so the
		// cycle runs regardless and pending fills reconcile later
		b.logger.Info("market is closed, orders will queue until open")
	}

	stakeAmount := b.stake.Amount(ctx, cfg.Stake)

	params := domain.TriggerParams{
		BuyDropPercent:  cfg.BuyDropPercent,
		SellRisePercent: cfg.SellRisePercent,
		TradeAmount:     stakeAmount,
		AlwaysOn:        cfg.AlwaysOn,
		AlwaysOnAmount:  cfg.AlwaysOnAmount,
	}

	prices := b.fetchPrices(ctx, cfg.Symbols)

	var buys, sells int
	for _, symbol := range cfg.Symbols {
		price, ok := prices[symbol]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			b.logger.Warn("no usable price, skipping symbol", zap.String("symbol", symbol))
			continue
		}

		executedBuys, executedSells := b.tradeSymbol(ctx, cfg, symbol, price, params)
		buys += executedBuys
		sells += executedSells
	}

	b.logger.Info("cycle complete",
		zap.Int("symbols", len(cfg.Symbols)),
		zap.Int("buys", buys),
		zap.Int("sells", sells),
		zap.String("stake", stakeAmount.String()),
		zap.Bool("dry_run", cfg.DryRun))

	return nil
}

// tradeSymbol runs the trigger engine for one symbol and executes its
// proposals. Sells run before the buy, newest lot first, so a buy in the same
// cycle is booked against the post-sell ledger.
func (b *TradingBot) tradeSymbol(ctx context.Context, cfg config.Config, symbol string, price decimal.Decimal, params domain.TriggerParams) (buys, sells int) {
	lots := b.ledger.Lots(symbol)

	dropPct := decimal.Zero
	lowest, hasLots := domain.LowestBuyPrice(lots)
	if hasLots {
		dropPct = domain.PercentageDiff(price, lowest).Neg()
	}
	b.logger.Info("symbol status",
		zap.String("symbol", symbol),
		zap.String("price", price.String()),
		zap.String("lowest_buy", lowest.String()),
		zap.String("drop_pct", dropPct.Round(2).String()),
		zap.Int("lots", len(lots)))

	proposals := domain.EvaluateSymbol(lots, price, params)

	var sellProposals []domain.Proposal
	var buyProposal *domain.Proposal
	for i := range proposals {
		switch proposals[i].Action {
		case domain.ActionSell:
			sellProposals = append(sellProposals, proposals[i])
		case domain.ActionBuy:
			buyProposal = &proposals[i]
		}
	}

	for i := len(sellProposals) - 1; i >= 0; i-- {
		p := sellProposals[i]
		if err := b.executor.ExecuteSell(ctx, cfg, symbol, p.LotID, p.Price); err != nil {
			b.logger.Error("sell failed",
				zap.String("symbol", symbol),
				zap.String("lot_id", p.LotID),
				zap.Error(err))
			continue
		}
		sells++
	}

	if buyProposal != nil {
		if _, err := b.executor.ExecuteBuy(ctx, cfg, symbol, buyProposal.Price, buyProposal.Amount); err != nil {
			b.logger.Error("buy failed",
				zap.String("symbol", symbol),
				zap.Error(err))
		} else {
			buys++
		}
	}

	return buys, sells
}

// fetchPrices quotes all symbols in batches, then fetches every symbol the
// batches left unquoted one by one. A symbol the batch endpoint omits or a
// failed batch cannot blank the whole cycle.
func (b *TradingBot) fetchPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(symbols))

	for start := 0; start < len(symbols); start += priceBatchSize {
		end := start + priceBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		batchPrices, err := b.broker.Prices(ctx, batch)
		if err != nil {
			b.logger.Warn("batch quote failed",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			continue
		}

		for symbol, price := range batchPrices {
			prices[symbol] = price
		}
	}

	for _, symbol := range symbols {
		if _, ok := prices[symbol]; ok {
			continue
		}
		price, err := b.broker.Price(ctx, symbol)
		if err != nil {
			b.logger.Warn("failed to quote symbol",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		prices[symbol] = price
	}

	return prices
}

package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/pasiu/gridbot/config"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/pasiu/gridbot/internal/services/executor"
	"github.com/pasiu/gridbot/internal/services/stake"
	"github.com/pasiu/gridbot/internal/storage/ledger"
	"github.com/pasiu/gridbot/internal/storage/trades"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type orderRecord struct {
	symbol string
	side   broker.Side
	qty    decimal.Decimal
}

type fakeBroker struct {
	prices     map[string]decimal.Decimal
	batchErr   error
	batchOmit  map[string]bool
	marketOpen bool
	orders     []orderRecord
}

func (f *fakeBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	return f.marketOpen, nil
}

func (f *fakeBroker) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		if f.batchOmit[symbol] {
			continue
		}
		if price, ok := f.prices[symbol]; ok {
			out[symbol] = price
		}
	}
	return out, nil
}

func (f *fakeBroker) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("no quote")
	}
	return price, nil
}

func (f *fakeBroker) AccountEquity(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(10000), nil
}

func (f *fakeBroker) AccountCash(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(10000), nil
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, symbol string, side broker.Side, quantity decimal.Decimal, dryRun bool) (broker.OrderRef, error) {
	f.orders = append(f.orders, orderRecord{symbol: symbol, side: side, qty: quantity})
	return broker.OrderRef{ID: "order", DryRun: dryRun}, nil
}

func (f *fakeBroker) LastExecution(ctx context.Context, ref broker.OrderRef) (broker.Execution, bool, error) {
	return broker.Execution{}, false, nil
}

func (f *fakeBroker) CancelAllOrders(ctx context.Context) error   { return nil }
func (f *fakeBroker) CloseAllPositions(ctx context.Context) error { return nil }

func (f *fakeBroker) TradeableAssets(ctx context.Context) ([]string, error) { return nil, nil }

func newTestBot(t *testing.T, fb *fakeBroker) (*TradingBot, *ledger.Store) {
	t.Helper()

	ledgerStore, err := ledger.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledgerStore.Close() })

	tradeStore, err := trades.NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { tradeStore.Close() })

	exec := executor.New(fb, ledgerStore, tradeStore, nil)
	stakeCalc := stake.NewCalculator(fb, nil)
	bot := NewTradingBot(nil, fb, ledgerStore, exec, stakeCalc, nil)
	return bot, ledgerStore
}

func testConfig(symbols ...string) config.Config {
	f := config.DefaultFile()
	f.Symbols = symbols
	return f.ToConfig(true)
}

func TestRunCycle_EmptySymbolGetsAlwaysOnBuy(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		prices:     map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	bot, ledgerStore := newTestBot(t, fb)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL")))

	require.Len(t, fb.orders, 1)
	require.Equal(t, broker.SideBuy, fb.orders[0].side)
	require.True(t, fb.orders[0].qty.Equal(decimal.NewFromInt(1)))
	require.Len(t, ledgerStore.Lots("AAPL"), 1)
}

func TestRunCycle_ClosedMarketStillQueuesOrders(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: false,
		prices:     map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	bot, ledgerStore := newTestBot(t, fb)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL")))

	require.Len(t, fb.orders, 1)
	require.Equal(t, broker.SideBuy, fb.orders[0].side)
	require.Len(t, ledgerStore.Lots("AAPL"), 1)
}

func TestRunCycle_ProfitableLotSellsWithoutReentry(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		prices:     map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	bot, ledgerStore := newTestBot(t, fb)

	// a lot bought at 90 sells at 100; re-entry waits for the next cycle
	_, err := ledgerStore.AddLot("AAPL", decimal.NewFromInt(90), decimal.NewFromInt(1))
	require.NoError(t, err)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL")))

	require.Len(t, fb.orders, 1)
	require.Equal(t, broker.SideSell, fb.orders[0].side)
}

func TestRunCycle_NewestLotSellsFirst(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		prices:     map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	bot, ledgerStore := newTestBot(t, fb)

	_, err := ledgerStore.AddLot("AAPL", decimal.NewFromInt(90), decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = ledgerStore.AddLot("AAPL", decimal.NewFromInt(95), decimal.NewFromInt(2))
	require.NoError(t, err)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL")))

	require.Len(t, fb.orders, 2)
	require.Equal(t, broker.SideSell, fb.orders[0].side)
	require.True(t, fb.orders[0].qty.Equal(decimal.NewFromInt(2)), "newest lot sells first")
	require.True(t, fb.orders[1].qty.Equal(decimal.NewFromInt(1)))
	require.Empty(t, ledgerStore.Lots("AAPL"))
}

func TestRunCycle_BatchFailureFallsBackPerSymbol(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		batchErr:   errors.New("batch endpoint down"),
		prices:     map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	bot, ledgerStore := newTestBot(t, fb)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL")))
	require.Len(t, ledgerStore.Lots("AAPL"), 1)
}

func TestRunCycle_SymbolMissingFromBatchFetchedSingly(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		batchOmit:  map[string]bool{"GHOST": true},
		prices: map[string]decimal.Decimal{
			"AAPL":  decimal.NewFromInt(100),
			"GHOST": decimal.NewFromInt(50),
		},
	}
	bot, ledgerStore := newTestBot(t, fb)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL", "GHOST")))

	require.Len(t, ledgerStore.Lots("AAPL"), 1)
	require.Len(t, ledgerStore.Lots("GHOST"), 1)
}

func TestRunCycle_UnquotableSymbolIsSkipped(t *testing.T) {
	fb := &fakeBroker{
		marketOpen: true,
		prices:     map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)},
	}
	bot, ledgerStore := newTestBot(t, fb)

	require.NoError(t, bot.runCycle(context.Background(), testConfig("AAPL", "GHOST")))

	require.Len(t, ledgerStore.Lots("AAPL"), 1)
	require.Empty(t, ledgerStore.Lots("GHOST"))
}

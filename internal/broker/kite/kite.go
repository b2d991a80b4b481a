// Package kite adapts the Zerodha Kite Connect API to the broker interface.
package kite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/pasiu/gridbot/pkg/retrier"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"
)

const (
	defaultExchange     = "NSE"
	instrumentsCacheTTL = 24 * time.Hour

	orderStatusComplete = "COMPLETE"
)

// Market session for NSE equities, exchange local time.
var (
	sessionOpen  = sessionTime{hour: 9, minute: 15}
	sessionClose = sessionTime{hour: 15, minute: 30}
)

type sessionTime struct {
	hour, minute int
}

// Broker is a Kite Connect backed brokerage connection.
type Broker struct {
	client   *kiteconnect.Client
	exchange string
	logger   *zap.Logger
	retry    *retrier.Retrier
	location *time.Location

	instMu        sync.Mutex
	instruments   []string
	instFetchedAt time.Time
}

// New creates a broker from API credentials. The access token must already be
// exchanged; token generation is a daily out-of-band step with Kite.
func New(apiKey, accessToken string, logger *zap.Logger) (*Broker, error) {
	if apiKey == "" || accessToken == "" {
		return nil, errors.New("kite api key and access token are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := kiteconnect.New(apiKey)
	client.SetAccessToken(accessToken)

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return nil, errors.Wrap(err, "load exchange timezone")
	}

	return &Broker{
		client:   client,
		exchange: defaultExchange,
		logger:   logger,
		retry:    retrier.New(),
		location: loc,
	}, nil
}

// IsMarketOpen reports whether the NSE equity session is in progress. The
// session window is computed locally; exchange holidays are not tracked, on
// those days orders are rejected downstream instead.
func (b *Broker) IsMarketOpen(ctx context.Context) (bool, error) {
	now := time.Now().In(b.location)

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false, nil
	}

	opensAt := time.Date(now.Year(), now.Month(), now.Day(), sessionOpen.hour, sessionOpen.minute, 0, 0, b.location)
	closesAt := time.Date(now.Year(), now.Month(), now.Day(), sessionClose.hour, sessionClose.minute, 0, 0, b.location)

	return !now.Before(opensAt) && !now.After(closesAt), nil
}

// Prices fetches last traded prices for the given symbols in one LTP call.
func (b *Broker) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	instruments := make([]string, len(symbols))
	for i, symbol := range symbols {
		instruments[i] = b.instrument(symbol)
	}

	quotes, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (kiteconnect.QuoteLTP, error) {
		return b.client.GetLTP(instruments...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch LTP quotes")
	}

	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		quote, ok := quotes[b.instrument(symbol)]
		if !ok || quote.LastPrice <= 0 {
			continue
		}
		out[symbol] = decimal.NewFromFloat(quote.LastPrice)
	}

	return out, nil
}

// Price fetches the last traded price for one symbol.
func (b *Broker) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.Prices(ctx, []string{symbol})
	if err != nil {
		return decimal.Decimal{}, err
	}

	price, ok := prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no quote for %s", symbol)
	}
	return price, nil
}

// AccountEquity returns the net equity segment value.
func (b *Broker) AccountEquity(ctx context.Context) (decimal.Decimal, error) {
	margins, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (kiteconnect.AllMargins, error) {
		return b.client.GetUserMargins()
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "fetch user margins")
	}

	return decimal.NewFromFloat(margins.Equity.Net), nil
}

// AccountCash returns the available cash in the equity segment.
func (b *Broker) AccountCash(ctx context.Context) (decimal.Decimal, error) {
	margins, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (kiteconnect.AllMargins, error) {
		return b.client.GetUserMargins()
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "fetch user margins")
	}

	return decimal.NewFromFloat(margins.Equity.Available.Cash), nil
}

// PlaceOrder submits a market CNC order. Buy quantities arrive as quote
// notional and are converted to whole shares at the current price; Kite does
// not trade fractional equity. Dry-run orders never leave the process.
func (b *Broker) PlaceOrder(ctx context.Context, symbol string, side broker.Side, quantity decimal.Decimal, dryRun bool) (broker.OrderRef, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return broker.OrderRef{}, fmt.Errorf("order quantity must be positive, got %s", quantity.String())
	}

	shares, err := b.shareCount(ctx, symbol, side, quantity)
	if err != nil {
		return broker.OrderRef{}, err
	}

	if dryRun {
		b.logger.Info("dry-run order skipped",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Int("shares", shares))
		return broker.OrderRef{ID: "DRY-" + uuid.New().String(), DryRun: true}, nil
	}

	transactionType := kiteconnect.TransactionTypeBuy
	if side == broker.SideSell {
		transactionType = kiteconnect.TransactionTypeSell
	}

	resp, err := b.client.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        b.exchange,
		Tradingsymbol:   symbol,
		Product:         kiteconnect.ProductCNC,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: transactionType,
		Quantity:        shares,
	})
	if err != nil {
		return broker.OrderRef{}, errors.Wrapf(err, "place %s order for %s", side, symbol)
	}

	b.logger.Info("order placed",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int("shares", shares),
		zap.String("order_id", resp.OrderID))

	return broker.OrderRef{ID: resp.OrderID}, nil
}

// LastExecution looks up the fill for a placed order. Dry-run refs report
// not-filled without touching the API.
func (b *Broker) LastExecution(ctx context.Context, ref broker.OrderRef) (broker.Execution, bool, error) {
	if ref.DryRun {
		return broker.Execution{}, false, nil
	}

	history, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) ([]kiteconnect.Order, error) {
		return b.client.GetOrderHistory(ref.ID)
	})
	if err != nil {
		return broker.Execution{}, false, errors.Wrapf(err, "fetch order history %s", ref.ID)
	}

	for i := len(history) - 1; i >= 0; i-- {
		order := history[i]
		if order.Status != orderStatusComplete {
			continue
		}
		return broker.Execution{
			Quantity: decimal.NewFromFloat(order.FilledQuantity),
			AvgPrice: decimal.NewFromFloat(order.AveragePrice),
		}, true, nil
	}

	return broker.Execution{}, false, nil
}

// CancelAllOrders cancels every open regular order on the account.
func (b *Broker) CancelAllOrders(ctx context.Context) error {
	orders, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (kiteconnect.Orders, error) {
		return b.client.GetOrders()
	})
	if err != nil {
		return errors.Wrap(err, "fetch open orders")
	}

	for _, order := range orders {
		if order.Status == orderStatusComplete || order.Status == "CANCELLED" || order.Status == "REJECTED" {
			continue
		}
		if _, err := b.client.CancelOrder(kiteconnect.VarietyRegular, order.OrderID, nil); err != nil {
			b.logger.Warn("failed to cancel order",
				zap.String("order_id", order.OrderID), zap.Error(err))
		}
	}

	return nil
}

// CloseAllPositions liquidates every net position with market orders.
func (b *Broker) CloseAllPositions(ctx context.Context) error {
	positions, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (kiteconnect.Positions, error) {
		return b.client.GetPositions()
	})
	if err != nil {
		return errors.Wrap(err, "fetch positions")
	}

	for _, pos := range positions.Net {
		if pos.Quantity == 0 {
			continue
		}

		transactionType := kiteconnect.TransactionTypeSell
		qty := pos.Quantity
		if qty < 0 {
			transactionType = kiteconnect.TransactionTypeBuy
			qty = -qty
		}

		_, err := b.client.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
			Exchange:        pos.Exchange,
			Tradingsymbol:   pos.Tradingsymbol,
			Product:         pos.Product,
			OrderType:       kiteconnect.OrderTypeMarket,
			TransactionType: transactionType,
			Quantity:        qty,
		})
		if err != nil {
			b.logger.Warn("failed to close position",
				zap.String("symbol", pos.Tradingsymbol), zap.Error(err))
		}
	}

	return nil
}

// TradeableAssets returns all tradingsymbols on the exchange. The instrument
// dump is large, so results are cached and refreshed once a day.
func (b *Broker) TradeableAssets(ctx context.Context) ([]string, error) {
	b.instMu.Lock()
	defer b.instMu.Unlock()

	if b.instruments != nil && time.Since(b.instFetchedAt) < instrumentsCacheTTL {
		out := make([]string, len(b.instruments))
		copy(out, b.instruments)
		return out, nil
	}

	instruments, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (kiteconnect.Instruments, error) {
		return b.client.GetInstrumentsByExchange(b.exchange)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch instruments for %s", b.exchange)
	}

	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if inst.Tradingsymbol == "" {
			continue
		}
		symbols = append(symbols, inst.Tradingsymbol)
	}

	b.instruments = symbols
	b.instFetchedAt = time.Now()

	out := make([]string, len(symbols))
	copy(out, symbols)
	return out, nil
}

// shareCount converts the order quantity into whole shares. Sells already
// carry share counts; buys carry notional and are divided by the live price,
// floored, with a minimum of one share.
func (b *Broker) shareCount(ctx context.Context, symbol string, side broker.Side, quantity decimal.Decimal) (int, error) {
	if side == broker.SideSell {
		shares := int(quantity.IntPart())
		if shares < 1 {
			shares = 1
		}
		return shares, nil
	}

	price, err := b.Price(ctx, symbol)
	if err != nil {
		return 0, errors.Wrapf(err, "price %s for share conversion", symbol)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("non-positive price for %s", symbol)
	}

	shares := int(quantity.Div(price).IntPart())
	if shares < 1 {
		shares = 1
	}
	return shares, nil
}

func (b *Broker) instrument(symbol string) string {
	return strings.ToUpper(b.exchange + ":" + symbol)
}

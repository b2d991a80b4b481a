// Package web serves the dashboard UI and the HTTP control surface.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pasiu/gridbot/config"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/pasiu/gridbot/internal/domain"
	"github.com/pasiu/gridbot/internal/storage/trades"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const tradePollInterval = 2 * time.Second

type ledgerReader interface {
	Snapshot() map[string][]domain.Lot
	Reset()
}

type tradeReader interface {
	EventsAfter(index uint64) ([]trades.Record, error)
	CurrentIndex() uint64
}

type configStore interface {
	Load() config.Config
	Update(mutate func(*config.File)) error
}

// Server exposes the HTML dashboard, JSON snapshots, an SSE trade stream and
// the command endpoints. It shares the process with the trading loop, so
// every mutation goes through the same stores the loop uses.
type Server struct {
	Addr   string
	Broker broker.Broker
	Ledger ledgerReader
	Trades tradeReader
	Config configStore
	Logger *zap.Logger
}

// NewServer creates a dashboard server.
func NewServer(addr string, b broker.Broker, ledger ledgerReader, tradeStore tradeReader, cfgStore configStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:   addr,
		Broker: b,
		Ledger: ledger,
		Trades: tradeStore,
		Config: cfgStore,
		Logger: logger,
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/data", s.handleData)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/trades/stream", s.handleTradeStream)
	mux.HandleFunc("/api/symbols/add", s.handleSymbolAdd)
	mux.HandleFunc("/api/symbols/add-all", s.handleSymbolAddAll)
	mux.HandleFunc("/api/symbols/remove", s.handleSymbolRemove)
	mux.HandleFunc("/api/stake", s.handleStake)
	mux.HandleFunc("/api/orders/cancel", s.handleCancelOrders)
	mux.HandleFunc("/api/positions/close", s.handleClosePositions)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

type lotView struct {
	ID        string `json:"id"`
	BuyPrice  string `json:"buy_price"`
	Quantity  string `json:"quantity"`
	CostBasis string `json:"cost_basis"`
	ProfitPct string `json:"profit_pct"`
	Time      string `json:"time"`
}

type symbolView struct {
	Symbol      string    `json:"symbol"`
	Price       string    `json:"price"`
	Lots        []lotView `json:"lots"`
	MarketValue string    `json:"market_value"`
	CostBasis   string    `json:"cost_basis"`
	Allocation  string    `json:"allocation_pct"`
}

type dataView struct {
	MarketOpen  bool         `json:"market_open"`
	DryRun      bool         `json:"dry_run"`
	Currency    string       `json:"currency"`
	Equity      string       `json:"equity"`
	Cash        string       `json:"cash"`
	TotalBasis  string       `json:"total_basis"`
	MarketValue string       `json:"market_value"`
	Allocation  string       `json:"allocation_pct"`
	ProfitMode  string       `json:"profit_mode"`
	StakeMode   string       `json:"stake_mode"`
	StakeFixed  string       `json:"stake_fixed"`
	StakePct    string       `json:"stake_percent"`
	Symbols     []symbolView `json:"symbols"`
	TradeIndex  uint64       `json:"trade_index"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.Config.Load()
	book := s.Ledger.Snapshot()

	prices, err := s.Broker.Prices(ctx, cfg.Symbols)
	if err != nil {
		s.Logger.Warn("dashboard price fetch failed", zap.Error(err))
		prices = map[string]decimal.Decimal{}
	}

	open, err := s.Broker.IsMarketOpen(ctx)
	if err != nil {
		open = false
	}

	equity, err := s.Broker.AccountEquity(ctx)
	if err != nil {
		equity = decimal.Zero
	}
	cash, err := s.Broker.AccountCash(ctx)
	if err != nil {
		cash = decimal.Zero
	}

	totalBasis := decimal.Zero
	marketValue := decimal.Zero
	symbols := make([]symbolView, 0, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		price := prices[symbol]
		lots := book[symbol]

		view := symbolView{Symbol: symbol, Price: price.String()}
		symbolBasis := decimal.Zero
		symbolValue := decimal.Zero
		for i := range lots {
			lot := lots[i]
			basis := lot.CostBasis()
			symbolBasis = symbolBasis.Add(basis)
			symbolValue = symbolValue.Add(lot.Quantity.Mul(price))
			view.Lots = append(view.Lots, lotView{
				ID:        lot.ID,
				BuyPrice:  lot.BuyPrice.String(),
				Quantity:  lot.Quantity.String(),
				CostBasis: basis.Round(2).String(),
				ProfitPct: domain.PercentageDiff(price, lot.BuyPrice).Round(2).String(),
				Time:      lot.Time.Format(time.RFC3339),
			})
		}
		view.CostBasis = symbolBasis.Round(2).String()
		view.MarketValue = symbolValue.Round(2).String()
		view.Allocation = "0"
		if equity.GreaterThan(decimal.Zero) {
			view.Allocation = symbolValue.Div(equity).Mul(decimal.NewFromInt(100)).Round(2).String()
		}
		totalBasis = totalBasis.Add(symbolBasis)
		marketValue = marketValue.Add(symbolValue)

		symbols = append(symbols, view)
	}

	allocation := decimal.Zero
	if equity.GreaterThan(decimal.Zero) {
		allocation = marketValue.Div(equity).Mul(decimal.NewFromInt(100))
	}

	writeJSON(w, dataView{
		MarketOpen:  open,
		DryRun:      cfg.DryRun,
		Currency:    cfg.Currency,
		Equity:      equity.Round(2).String(),
		Cash:        cash.Round(2).String(),
		TotalBasis:  totalBasis.Round(2).String(),
		MarketValue: marketValue.Round(2).String(),
		Allocation:  allocation.Round(2).String(),
		ProfitMode:  string(cfg.ProfitMode),
		StakeMode:   cfg.Stake.Mode,
		StakeFixed:  cfg.Stake.FixedAmount.String(),
		StakePct:    cfg.Stake.PercentAmount.String(),
		Symbols:     symbols,
		TradeIndex:  s.Trades.CurrentIndex(),
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	after := uint64(0)
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid after parameter", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	records, err := s.Trades.EventsAfter(after)
	if err != nil {
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		s.Logger.Error("trade feed read failed", zap.Error(err))
		return
	}

	writeJSON(w, records)
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(tradePollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	streamed := false
	sendTrades := func() error {
		records, err := s.Trades.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: trade\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			streamed = true
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendTrades(); err != nil {
		s.Logger.Error("trade stream initial load failed", zap.Error(err))
		// an error status is only valid while the stream is still untouched
		if !streamed {
			http.Error(w, "failed to load trades", http.StatusInternalServerError)
		}
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendTrades(); err != nil {
				s.Logger.Error("trade stream poll failed", zap.Error(err))
			}
		}
	}
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleSymbolAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req symbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	if err := s.Config.Update(func(f *config.File) {
		for _, existing := range f.Symbols {
			if existing == symbol {
				return
			}
		}
		f.Symbols = append(f.Symbols, symbol)
	}); err != nil {
		http.Error(w, "failed to update config", http.StatusInternalServerError)
		s.Logger.Error("symbol add failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	writeJSON(w, map[string]string{"status": "ok", "symbol": symbol})
}

func (s *Server) handleSymbolAddAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	assets, err := s.Broker.TradeableAssets(r.Context())
	if err != nil {
		http.Error(w, "failed to list tradeable assets", http.StatusInternalServerError)
		s.Logger.Error("tradeable assets fetch failed", zap.Error(err))
		return
	}

	var added int
	if err := s.Config.Update(func(f *config.File) {
		existing := make(map[string]bool, len(f.Symbols))
		for _, symbol := range f.Symbols {
			existing[symbol] = true
		}
		for _, symbol := range assets {
			if existing[symbol] {
				continue
			}
			f.Symbols = append(f.Symbols, symbol)
			existing[symbol] = true
			added++
		}
	}); err != nil {
		http.Error(w, "failed to update config", http.StatusInternalServerError)
		s.Logger.Error("symbol add-all failed", zap.Error(err))
		return
	}

	writeJSON(w, map[string]int{"added": added})
}

func (s *Server) handleSymbolRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req symbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	if err := s.Config.Update(func(f *config.File) {
		kept := f.Symbols[:0]
		for _, existing := range f.Symbols {
			if existing != symbol {
				kept = append(kept, existing)
			}
		}
		f.Symbols = kept
	}); err != nil {
		http.Error(w, "failed to update config", http.StatusInternalServerError)
		s.Logger.Error("symbol remove failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	writeJSON(w, map[string]string{"status": "ok", "symbol": symbol})
}

type stakeRequest struct {
	Mode          string  `json:"mode"`
	FixedAmount   float64 `json:"fixed_amount"`
	PercentAmount float64 `json:"percent_amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mode != config.StakeModeFixed && req.Mode != config.StakeModePercent {
		http.Error(w, "mode must be fixed or percent", http.StatusBadRequest)
		return
	}
	if req.FixedAmount <= 0 && req.PercentAmount <= 0 {
		http.Error(w, "stake amount must be positive", http.StatusBadRequest)
		return
	}

	if err := s.Config.Update(func(f *config.File) {
		f.StakeSettings.Mode = req.Mode
		if req.FixedAmount > 0 {
			f.StakeSettings.FixedAmount = req.FixedAmount
		}
		if req.PercentAmount > 0 {
			f.StakeSettings.PercentAmount = req.PercentAmount
		}
	}); err != nil {
		http.Error(w, "failed to update config", http.StatusInternalServerError)
		s.Logger.Error("stake update failed", zap.Error(err))
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleCancelOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.Broker.CancelAllOrders(r.Context()); err != nil {
		http.Error(w, "failed to cancel orders", http.StatusInternalServerError)
		s.Logger.Error("cancel all orders failed", zap.Error(err))
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleClosePositions liquidates everything at the broker and wipes the
// ledger so the next cycle starts from a clean book.
func (s *Server) handleClosePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.Broker.CloseAllPositions(r.Context()); err != nil {
		http.Error(w, "failed to close positions", http.StatusInternalServerError)
		s.Logger.Error("close all positions failed", zap.Error(err))
		return
	}

	s.Ledger.Reset()
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

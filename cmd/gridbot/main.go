// Command gridbot runs the dollar-cost-averaging grid trader for equities.
// It books every buy as a lot, sells each lot once it has risen enough, and
// buys more on drops below the cheapest open lot.
//
// Usage:
//
//	gridbot --config config.yaml
//	gridbot --setup (interactive configuration wizard)
//
// Environment variables:
//
//	TRADING_MODE: DRY (default) keeps orders local, LIVE places real orders
//	For live trading: KITE_API_KEY, KITE_ACCESS_TOKEN
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pasiu/gridbot/config"
	"github.com/pasiu/gridbot/internal"
	"github.com/pasiu/gridbot/internal/broker"
	"github.com/pasiu/gridbot/internal/broker/kite"
	"github.com/pasiu/gridbot/internal/broker/sim"
	"github.com/pasiu/gridbot/internal/services/executor"
	"github.com/pasiu/gridbot/internal/services/stake"
	"github.com/pasiu/gridbot/internal/setup"
	"github.com/pasiu/gridbot/internal/storage/ledger"
	"github.com/pasiu/gridbot/internal/storage/trades"
	"github.com/pasiu/gridbot/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard first")
	webAddr := flag.String("web-addr", ":8080", "dashboard listen address")
	ledgerDir := flag.String("ledger-dir", ledger.DefaultDir, "lot ledger WAL directory")
	tradesDir := flag.String("trades-dir", trades.DefaultDir, "trade feed WAL directory")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if *runSetup {
		if err := setup.RunTUI(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	cfgStore := config.NewStore(*configPath, logger)
	cfg := cfgStore.Load()

	var b broker.Broker
	apiKey := os.Getenv("KITE_API_KEY")
	accessToken := os.Getenv("KITE_ACCESS_TOKEN")
	if apiKey != "" && accessToken != "" {
		b, err = kite.New(apiKey, accessToken, logger)
		if err != nil {
			log.Fatal(err)
		}
		logger.Info("using kite broker", zap.Bool("dry_run", cfg.DryRun))
	} else {
		if !cfg.DryRun {
			log.Fatal("TRADING_MODE=LIVE requires KITE_API_KEY and KITE_ACCESS_TOKEN")
		}
		b = sim.New(cfg.Symbols, logger)
		logger.Info("no broker credentials, using offline simulator")
	}

	ledgerStore, err := ledger.NewStore(*ledgerDir, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer ledgerStore.Close()

	tradeStore, err := trades.NewWALStore(*tradesDir)
	if err != nil {
		log.Fatal(err)
	}
	defer tradeStore.Close()

	exec := executor.New(b, ledgerStore, tradeStore, logger)
	stakeCalc := stake.NewCalculator(b, logger)
	bot := internal.NewTradingBot(cfgStore, b, ledgerStore, exec, stakeCalc, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := web.NewServer(*webAddr, b, ledgerStore, tradeStore, cfgStore, logger)
	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("dashboard server failed", zap.Error(err))
		}
	}()
	logger.Info("dashboard listening", zap.String("addr", *webAddr))

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

// Command adaptrader runs the adaptive BTC accumulation engine: scheduled
// DCA buys with a tactical swing overlay, forecast-driven threshold
// adaptation and a drawdown risk gate. Trading is simulated on paper;
// exchanges are used for market data only.
//
// Usage:
//
//	adaptrader --config config.yaml
//	adaptrader --mode hybrid --budget 10000
//	adaptrader setup   (interactive configuration wizard)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal"
	"adaptrader/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	bot, err := internal.NewTradingBot(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create trading bot", zap.Error(err))
	}
	defer bot.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("trading bot stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

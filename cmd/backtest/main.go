// Command backtest replays a CSV bar series through the decision engine and
// prints the aggregated result as JSON.
//
// Usage:
//
//	backtest --data bars.csv [--config config.yaml] [--out result.json]
package main

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/backtest"
)

func main() {
	dataPath := flag.String("data", "", "path to OHLCV csv (timestamp,open,high,low,close,volume)")
	configPath := flag.String("config", "", "path to yaml config (defaults apply when omitted)")
	outPath := flag.String("out", "", "write the JSON result to this file instead of stdout")
	adaptEvery := flag.Int("adapt-every", 1, "run the adaptation step every N bars")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("--data is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.FromFile(*configPath)
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	bars, err := backtest.LoadBarsCSV(*dataPath)
	if err != nil {
		logger.Fatal("failed to load bars", zap.Error(err))
	}

	engine := backtest.NewEngine(cfg, logger)
	engine.AdaptEveryBars = *adaptEvery

	result, err := engine.Run(bars)
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Fatal("failed to create output file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	if err := result.WriteJSON(out); err != nil {
		logger.Fatal("failed to write result", zap.Error(err))
	}
}

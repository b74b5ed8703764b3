package internal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/domain"
	"adaptrader/internal/services/adapter"
	"adaptrader/internal/services/forecast"
	"adaptrader/internal/services/market"
	"adaptrader/internal/services/notifier"
	"adaptrader/internal/services/strategy"
	"adaptrader/internal/services/trader"
	"adaptrader/internal/storage/ledger"
	"adaptrader/internal/storage/state"
)

// TradingBot wires the decision core to live market data, persistence and
// notifications. The trade cycle and the adaptation cycle run on independent
// cron cadences over shared state.
type TradingBot struct {
	cfg        config.Config
	logger     *zap.Logger
	manager    *strategy.Manager
	broker     trader.Broker
	snapshots  *market.SnapshotProvider
	forecaster *forecast.Forecaster
	adapter    *adapter.ThresholdAdapter
	stateStore *state.WALStore
	ledger     *ledger.Ledger
	notifier   notifier.Notifier

	mu        sync.Mutex
	state     domain.EngineState
	wasPaused bool
}

// NewTradingBot creates a bot instance from the configuration. Engine state
// is restored from the WAL when a previous run left one.
func NewTradingBot(cfg config.Config, logger *zap.Logger) (*TradingBot, error) {
	collector, err := createCollector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create market collector")
	}
	retrying := market.NewRetryingCollector(collector, 30*time.Second, logger)
	return NewTradingBotWithCollector(cfg, retrying, logger)
}

// NewTradingBotWithCollector builds the bot on an explicit collector.
func NewTradingBotWithCollector(cfg config.Config, collector market.Collector, logger *zap.Logger) (*TradingBot, error) {
	if logger == nil {
		logger = zap.L()
	}

	snapshots, err := market.NewSnapshotProvider(collector, cfg.Symbol, cfg.BarInterval, cfg.WindowSize, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot provider")
	}

	stateStore, err := state.NewWALStore(cfg.StateDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state store")
	}

	tradeLedger, err := ledger.NewLedger(cfg.LedgerPath, logger)
	if err != nil {
		stateStore.Close()
		return nil, errors.Wrap(err, "failed to open ledger")
	}

	var notify notifier.Notifier = notifier.NopNotifier{}
	if cfg.TelegramToken != "" {
		tg, err := notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			notify = tg
		}
	}

	engineState, restored, err := stateStore.LoadState()
	if err != nil {
		stateStore.Close()
		tradeLedger.Close()
		return nil, errors.Wrap(err, "failed to restore engine state")
	}
	if !restored {
		engineState = domain.EngineState{
			Portfolio: domain.NewPortfolio(cfg.BudgetUSD),
			Overrides: domain.DefaultOverrides(cfg.DCADropPercent, cfg.ATRMultiplier),
		}
	} else {
		if err := engineState.Portfolio.Validate(); err != nil {
			stateStore.Close()
			tradeLedger.Close()
			return nil, errors.Wrap(err, "restored engine state is corrupted")
		}
		logger.Info("engine state restored",
			zap.String("cash", engineState.Portfolio.Cash.String()),
			zap.String("btc", engineState.Portfolio.BTCHeld.String()),
			zap.Bool("position_open", engineState.Position != nil))
	}

	return &TradingBot{
		cfg:        cfg,
		logger:     logger,
		manager:    strategy.NewManager(logger),
		broker:     trader.NewPaperBroker(logger),
		snapshots:  snapshots,
		forecaster: forecast.New(logger),
		adapter:    adapter.New(logger),
		stateStore: stateStore,
		ledger:     tradeLedger,
		notifier:   notify,
		state:      engineState,
	}, nil
}

func createCollector(cfg config.Config) (market.Collector, error) {
	switch cfg.Platform {
	case "binance":
		return market.NewBinanceCollector("", ""), nil
	case "bybit":
		return market.NewBybitCollector("", ""), nil
	default:
		return nil, errors.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// Cycle runs one trade decision cycle: fetch a snapshot, evaluate, execute
// and commit the resulting intents, persist state.
func (b *TradingBot) Cycle(ctx context.Context) error {
	now := time.Now().UTC()
	snap, err := b.snapshots.Snapshot(ctx, now)
	if err != nil {
		return errors.Wrap(err, "cycle snapshot")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.manager.Step(b.cfg, snap, b.state)
	if err != nil {
		return errors.Wrap(err, "cycle step")
	}
	b.state = res.State

	if res.Paused && !b.wasPaused {
		b.notifier.RiskPaused(res.Drawdown, b.cfg.MaxDrawdown)
	}
	b.wasPaused = res.Paused

	for _, intent := range res.Intents {
		fill, err := b.broker.Execute(ctx, intent)
		if err != nil {
			return errors.Wrapf(err, "execute %s", intent.Kind)
		}

		next, record, err := b.manager.Commit(b.state, intent, fill)
		if err != nil {
			return errors.Wrapf(err, "commit %s", intent.Kind)
		}
		b.state = next

		if err := b.ledger.RecordTrade(record); err != nil {
			b.logger.Error("failed to record trade", zap.Error(err))
		}
		b.notifier.TradeExecuted(record)
		if record.Kind == domain.IntentDCABuy {
			b.notifier.PortfolioStatus(
				b.state.Portfolio.Equity(snap.Price),
				b.state.Portfolio.Cash,
				b.state.Portfolio.BTCHeld,
				b.state.Portfolio.RealizedPnL)
		}
	}

	equity := b.state.Portfolio.Equity(snap.Price)
	if err := b.ledger.RecordEquity(now, equity, res.Drawdown); err != nil {
		b.logger.Error("failed to record equity sample", zap.Error(err))
	}

	if err := b.stateStore.SaveState(b.state); err != nil {
		return errors.Wrap(err, "persist engine state")
	}

	b.logger.Info("cycle done",
		zap.String("price", snap.Price.String()),
		zap.String("equity", equity.String()),
		zap.String("drawdown", res.Drawdown.String()),
		zap.Int("intents", len(res.Intents)),
		zap.Bool("paused", res.Paused))
	return nil
}

// Adapt runs one adaptation cycle: refit the forecaster on the close window
// and refresh the runtime overrides. Fit failures keep the previous
// overrides in force.
func (b *TradingBot) Adapt(ctx context.Context) error {
	now := time.Now().UTC()
	snap, err := b.snapshots.Snapshot(ctx, now)
	if err != nil {
		return errors.Wrap(err, "adapt snapshot")
	}

	fc, err := b.forecaster.Forecast(snap.Closes(), now)
	if err != nil {
		if errors.Is(err, forecast.ErrWindowTooShort) || errors.Is(err, forecast.ErrFitDegenerate) {
			b.logger.Warn("forecast unavailable, keeping previous overrides", zap.Error(err))
			return nil
		}
		return errors.Wrap(err, "forecast")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Overrides = b.adapter.Adapt(b.cfg, fc, b.state.Overrides, now)

	if err := b.stateStore.SaveForecast(fc); err != nil {
		b.logger.Error("failed to persist forecast", zap.Error(err))
	}
	if err := b.stateStore.SaveOverrides(b.state.Overrides); err != nil {
		return errors.Wrap(err, "persist overrides")
	}
	return b.stateStore.SaveState(b.state)
}

// Run schedules the trade and adaptation cycles and blocks until the context
// is cancelled.
func (b *TradingBot) Run(ctx context.Context) error {
	scheduler := cron.New()

	if _, err := scheduler.AddFunc(b.cfg.CycleSpec, func() {
		if err := b.Cycle(ctx); err != nil {
			b.logger.Error("trade cycle failed", zap.Error(err))
		}
	}); err != nil {
		return errors.Wrapf(err, "schedule trade cycle %q", b.cfg.CycleSpec)
	}

	if _, err := scheduler.AddFunc(b.cfg.AdaptSpec, func() {
		if err := b.Adapt(ctx); err != nil {
			b.logger.Error("adaptation cycle failed", zap.Error(err))
		}
	}); err != nil {
		return errors.Wrapf(err, "schedule adaptation cycle %q", b.cfg.AdaptSpec)
	}

	b.logger.Info("starting trading loop",
		zap.String("symbol", b.cfg.Symbol),
		zap.String("cycle_spec", b.cfg.CycleSpec),
		zap.String("adapt_spec", b.cfg.AdaptSpec))

	// first cycle immediately; the scheduler covers the rest
	if err := b.Cycle(ctx); err != nil {
		b.logger.Error("initial cycle failed", zap.Error(err))
	}

	scheduler.Start()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Close releases persistence resources.
func (b *TradingBot) Close() error {
	var firstErr error
	if err := b.stateStore.Close(); err != nil {
		firstErr = err
	}
	if err := b.ledger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

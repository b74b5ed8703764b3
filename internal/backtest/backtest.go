// Package backtest replays historical bars through the live decision code.
// The engine drives the same manager, forecaster, adapter and paper broker
// the bot runs with; only the clock and data feed differ.
package backtest

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/domain"
	"adaptrader/internal/services/adapter"
	"adaptrader/internal/services/forecast"
	"adaptrader/internal/services/strategy"
	"adaptrader/internal/services/trader"
	"adaptrader/internal/storage/ledger"
)

// EquityPoint is one sample of the mark-to-market equity curve.
type EquityPoint struct {
	Timestamp string `json:"timestamp"`
	Equity    string `json:"equity"`
	Drawdown  string `json:"drawdown"`
}

// Result is the aggregated backtest outcome. All fields derive only from
// the bar series and the configuration, so two runs over the same input
// produce identical results.
type Result struct {
	FinalEquity decimal.Decimal      `json:"final_equity"`
	TotalReturn decimal.Decimal      `json:"total_return"`
	MaxDrawdown decimal.Decimal      `json:"max_drawdown"`
	TradeCount  int                  `json:"trade_count"`
	CloseCount  int                  `json:"close_count"`
	WinRate     decimal.Decimal      `json:"win_rate"`
	RealizedPnL decimal.Decimal      `json:"realized_pnl"`
	Trades      []domain.TradeRecord `json:"trades"`
	EquityCurve []EquityPoint        `json:"equity_curve"`
}

// Engine replays bars through the decision core.
type Engine struct {
	cfg        config.Config
	logger     *zap.Logger
	manager    *strategy.Manager
	forecaster *forecast.Forecaster
	adapter    *adapter.ThresholdAdapter

	// AdaptEveryBars is the synthetic adaptation cadence; every Nth bar the
	// forecaster refits and the adapter refreshes overrides.
	AdaptEveryBars int
}

// NewEngine returns a backtest engine for the configuration.
func NewEngine(cfg config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:            cfg,
		logger:         logger,
		manager:        strategy.NewManager(logger),
		forecaster:     forecast.New(logger),
		adapter:        adapter.New(logger),
		AdaptEveryBars: 1,
	}
}

// Run replays the bars in order. Each bar becomes one decision cycle whose
// snapshot holds the trailing window; intents fill at the bar close.
func (e *Engine) Run(bars []domain.Bar) (Result, error) {
	if len(bars) == 0 {
		return Result{}, errors.New("no bars to replay")
	}
	adaptEvery := e.AdaptEveryBars
	if adaptEvery < 1 {
		adaptEvery = 1
	}

	broker := trader.NewPaperBroker(e.logger)
	state := domain.EngineState{
		Portfolio: domain.NewPortfolio(e.cfg.BudgetUSD),
		Overrides: domain.DefaultOverrides(e.cfg.DCADropPercent, e.cfg.ATRMultiplier),
	}

	result := Result{MaxDrawdown: decimal.Zero}
	ctx := context.Background()

	for i, bar := range bars {
		start := i + 1 - e.cfg.WindowSize
		if start < 0 {
			start = 0
		}
		window := bars[start : i+1]
		snap := domain.MarketSnapshot{
			Timestamp: bar.Timestamp,
			Price:     bar.Close,
			Bars:      window,
		}

		if i%adaptEvery == 0 {
			closes := make([]decimal.Decimal, len(window))
			for j, b := range window {
				closes[j] = b.Close
			}
			fc, err := e.forecaster.Forecast(closes, bar.Timestamp)
			switch {
			case err == nil:
				state.Overrides = e.adapter.Adapt(e.cfg, fc, state.Overrides, bar.Timestamp)
			case errors.Is(err, forecast.ErrWindowTooShort) || errors.Is(err, forecast.ErrFitDegenerate):
				// previous overrides stay in force
			default:
				return Result{}, errors.Wrap(err, "adaptation")
			}
		}

		res, err := e.manager.Step(e.cfg, snap, state)
		if err != nil {
			return Result{}, errors.Wrapf(err, "cycle at bar %d", i)
		}
		state = res.State

		for _, intent := range res.Intents {
			fill, err := broker.Execute(ctx, intent)
			if err != nil {
				return Result{}, errors.Wrapf(err, "execute %s at bar %d", intent.Kind, i)
			}
			next, record, err := e.manager.Commit(state, intent, fill)
			if err != nil {
				return Result{}, errors.Wrapf(err, "commit %s at bar %d", intent.Kind, i)
			}
			state = next
			result.Trades = append(result.Trades, record)
		}

		if res.Drawdown.GreaterThan(result.MaxDrawdown) {
			result.MaxDrawdown = res.Drawdown
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Timestamp: bar.Timestamp.UTC().Format(time.RFC3339),
			Equity:    state.Portfolio.Equity(bar.Close).String(),
			Drawdown:  res.Drawdown.String(),
		})
	}

	lastPrice := bars[len(bars)-1].Close
	result.FinalEquity = state.Portfolio.Equity(lastPrice)
	result.TotalReturn = result.FinalEquity.Sub(e.cfg.BudgetUSD).Div(e.cfg.BudgetUSD)

	summary := ledger.Summarize(result.Trades)
	result.TradeCount = summary.TradeCount
	result.CloseCount = summary.CloseCount
	result.WinRate = summary.WinRate
	result.RealizedPnL = summary.RealizedPnL

	e.logger.Info("backtest finished",
		zap.Int("bars", len(bars)),
		zap.Int("trades", result.TradeCount),
		zap.String("final_equity", result.FinalEquity.String()),
		zap.String("max_drawdown", result.MaxDrawdown.String()))

	return result, nil
}

// WriteJSON exports the result as indented JSON.
func (r Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r), "encode backtest result")
}

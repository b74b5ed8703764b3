// Package strategy contains the decision core: the accumulation evaluator,
// the tactical evaluator and the cycle manager that sequences them. The
// manager is free of I/O and clocks; the live bot and the backtest engine
// drive the identical code with their own snapshots and timestamps.
package strategy

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/domain"
	"adaptrader/internal/services/risk"
	"adaptrader/pkg/indicators"
)

// CycleResult is the outcome of one decision cycle: the ordered intents plus
// the updated state (peak equity observation, reference seeding, trailing
// stop moves). Nothing in the returned state assumes any intent executed.
type CycleResult struct {
	Intents      []domain.TradeIntent
	State        domain.EngineState
	Paused       bool
	Drawdown     decimal.Decimal
	ATR          decimal.Decimal
	ATRAvailable bool
}

// Manager orchestrates one cycle in fixed order: risk gate, overrides read,
// accumulation, tactical entry, tactical monitoring.
type Manager struct {
	logger *zap.Logger
	dca    DCAEvaluator
	swing  SwingEvaluator
}

// NewManager returns a cycle manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Step runs one decision cycle over the snapshot and current state. It never
// mutates its input; committed state changes happen only through Commit once
// the broker confirms a fill.
func (m *Manager) Step(cfg config.Config, snap domain.MarketSnapshot, state domain.EngineState) (CycleResult, error) {
	if err := state.Portfolio.Validate(); err != nil {
		return CycleResult{}, errors.Wrap(err, "cycle aborted")
	}

	next := state.Clone()

	// (1) risk gate on mark-to-market equity
	next.Portfolio.ObservePeak(snap.Price)
	verdict := risk.NewGate(cfg).Check(next.Portfolio, snap.Price)

	// (2) overrides were loaded by the caller into state; read-only here
	overrides := next.Overrides

	// seed the accumulation reference from the first observed price; after
	// that only executed buys move it
	if next.DCARef.Price.LessThanOrEqual(decimal.Zero) {
		next.DCARef.Price = snap.Price
	}

	atr, atrErr := indicators.ATR(snap.Bars, cfg.ATRPeriod)
	atrAvailable := atrErr == nil
	if atrErr != nil && !errors.Is(atrErr, indicators.ErrNotEnoughBars) {
		return CycleResult{}, errors.Wrap(atrErr, "atr computation")
	}

	result := CycleResult{
		Paused:       verdict.Paused,
		Drawdown:     verdict.Drawdown,
		ATR:          atr,
		ATRAvailable: atrAvailable,
	}

	if verdict.Paused {
		m.logger.Warn("risk gate paused entries",
			zap.String("drawdown", verdict.Drawdown.String()),
			zap.String("max_drawdown", cfg.MaxDrawdown.String()))
	}

	// (3) accumulation; an intent emitted this cycle reserves its cash so
	// the tactical entry cannot overcommit the same dollars
	cash := next.Portfolio.Cash
	dcaDecision := m.dca.Evaluate(cfg, snap.Price, snap.Timestamp, next.DCARef, next.SpentUSD, cash, overrides.DCADropPercent, verdict.Paused)
	if dcaDecision.Triggered {
		result.Intents = append(result.Intents, domain.TradeIntent{
			ID:        uuid.NewString(),
			Kind:      domain.IntentDCABuy,
			AmountUSD: dcaDecision.AmountUSD,
			Price:     snap.Price,
			Reason:    dcaDecision.Reason,
			Time:      snap.Timestamp,
		})
		cash = cash.Sub(dcaDecision.AmountUSD)
	} else {
		m.logger.Debug("dca no action", zap.String("reason", dcaDecision.Reason))
	}

	// (4) tactical entry
	entry := m.swing.EvaluateEntry(cfg, snap.Price, atr, atrAvailable, overrides, next.Position, cash, verdict.Paused)
	if entry.Open {
		result.Intents = append(result.Intents, domain.TradeIntent{
			ID:        uuid.NewString(),
			Kind:      domain.IntentSwingOpen,
			AmountUSD: entry.AmountUSD,
			Price:     snap.Price,
			StopPrice: entry.StopPrice,
			Reason:    entry.Reason,
			Time:      snap.Timestamp,
		})
	} else {
		m.logger.Debug("swing no entry", zap.String("reason", entry.Reason))
	}

	// (5) tactical monitoring; the stop close fires even while paused
	m.swing.TrailStop(cfg, snap.Price, atr, atrAvailable, overrides, next.Position)
	exit := m.swing.Monitor(snap.Price, next.Position, verdict.BlockCloses)
	if exit.Close {
		result.Intents = append(result.Intents, domain.TradeIntent{
			ID:        uuid.NewString(),
			Kind:      domain.IntentSwingClose,
			AmountUSD: next.Position.SizeUSD,
			BTCAmount: next.Position.BTCAmount,
			Price:     snap.Price,
			Reason:    exit.Reason,
			Time:      snap.Timestamp,
		})
	}

	result.State = next
	return result, nil
}

// Commit applies a broker-confirmed fill to the state and returns the ledger
// record. The manager never assumes success: callers invoke Commit only
// after the execution collaborator reports a fill.
func (m *Manager) Commit(state domain.EngineState, intent domain.TradeIntent, fill domain.Fill) (domain.EngineState, domain.TradeRecord, error) {
	next := state.Clone()

	record := domain.TradeRecord{
		Timestamp: intent.Time,
		Kind:      intent.Kind,
		Price:     fill.Price,
		SizeUSD:   fill.AmountUSD,
		BTCAmount: fill.BTCAmount,
	}

	switch intent.Kind {
	case domain.IntentDCABuy:
		if err := next.Portfolio.ApplyBuy(fill.AmountUSD, fill.BTCAmount); err != nil {
			return state, domain.TradeRecord{}, errors.Wrap(err, "commit dca buy")
		}
		next.SpentUSD = next.SpentUSD.Add(fill.AmountUSD)
		next.DCARef = domain.DCAReference{Price: fill.Price, Timestamp: intent.Time}

	case domain.IntentSwingOpen:
		if next.Position != nil {
			return state, domain.TradeRecord{}, domain.ErrDuplicatePosition
		}
		if err := next.Portfolio.ApplyBuy(fill.AmountUSD, fill.BTCAmount); err != nil {
			return state, domain.TradeRecord{}, errors.Wrap(err, "commit swing open")
		}
		position, err := domain.NewPosition(fill.Price, intent.StopPrice, fill.AmountUSD, intent.Time)
		if err != nil {
			return state, domain.TradeRecord{}, errors.Wrap(err, "commit swing open")
		}
		next.Position = position

	case domain.IntentSwingClose:
		if next.Position == nil {
			return state, domain.TradeRecord{}, errors.New("commit swing close: no open position")
		}
		pnl := next.Position.RealizedPnL(fill.Price)
		proceeds := fill.BTCAmount.Mul(fill.Price)
		if err := next.Portfolio.ApplySell(fill.BTCAmount, proceeds, pnl); err != nil {
			return state, domain.TradeRecord{}, errors.Wrap(err, "commit swing close")
		}
		next.Position = nil
		record.PnL = pnl

	default:
		return state, domain.TradeRecord{}, errors.Errorf("unknown intent kind %q", intent.Kind)
	}

	m.logger.Info("intent committed",
		zap.String("kind", string(intent.Kind)),
		zap.String("price", fill.Price.String()),
		zap.String("size_usd", fill.AmountUSD.String()))

	return next, record, nil
}

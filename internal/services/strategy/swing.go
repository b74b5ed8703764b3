package strategy

import (
	"github.com/shopspring/decimal"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

// SwingEvaluator handles the tactical position: entry gating while flat,
// stop monitoring while in position. At most one position exists at a time.
type SwingEvaluator struct{}

// SwingEntry is the entry evaluation result.
type SwingEntry struct {
	Open      bool
	StopPrice decimal.Decimal
	AmountUSD decimal.Decimal
	Reason    string
}

// EvaluateEntry gates a new tactical position. Requires hybrid mode, the
// adaptation layer's enable_swing, an unpaused gate, an available ATR, no
// existing position and cash covering the size. An unavailable ATR is a
// hard block, never a zero stop.
func (SwingEvaluator) EvaluateEntry(
	cfg config.Config,
	price decimal.Decimal,
	atr decimal.Decimal,
	atrAvailable bool,
	overrides domain.RuntimeOverrides,
	position *domain.Position,
	cash decimal.Decimal,
	paused bool,
) SwingEntry {
	if cfg.TradingMode != domain.ModeHybrid {
		return SwingEntry{Reason: "mode_not_hybrid"}
	}
	if !overrides.EnableSwing {
		return SwingEntry{Reason: "swing_disabled"}
	}
	if paused {
		return SwingEntry{Reason: "risk_paused"}
	}
	if !atrAvailable || atr.LessThanOrEqual(decimal.Zero) {
		return SwingEntry{Reason: "atr_unavailable"}
	}
	if position != nil {
		return SwingEntry{Reason: "position_already_open"}
	}
	if cfg.SwingAmountUSD.GreaterThan(cash) {
		return SwingEntry{Reason: "insufficient_cash"}
	}

	stop := price.Sub(overrides.ATRKStop.Mul(atr))
	if stop.LessThanOrEqual(decimal.Zero) {
		return SwingEntry{Reason: "stop_below_zero"}
	}

	return SwingEntry{
		Open:      true,
		StopPrice: stop,
		AmountUSD: cfg.SwingAmountUSD,
		Reason:    "forecast_entry",
	}
}

// SwingExit is the monitoring result for an open position.
type SwingExit struct {
	Close  bool
	Reason string
}

// Monitor checks the stop for an open position. The close fires even while
// the risk gate is paused (closing reduces risk); only the explicit
// block-closes policy can suppress it.
func (SwingEvaluator) Monitor(price decimal.Decimal, position *domain.Position, blockCloses bool) SwingExit {
	if position == nil {
		return SwingExit{Reason: "flat"}
	}
	if blockCloses {
		return SwingExit{Reason: "closes_blocked_by_policy"}
	}
	if position.StopHit(price) {
		return SwingExit{Close: true, Reason: "stop_hit"}
	}
	return SwingExit{Reason: "stop_not_hit"}
}

// TrailStop recomputes the trailing stop from the current price when the
// trailing policy is configured. Returns true when the stop moved.
func (SwingEvaluator) TrailStop(cfg config.Config, price, atr decimal.Decimal, atrAvailable bool, overrides domain.RuntimeOverrides, position *domain.Position) bool {
	if !cfg.TrailingStop || position == nil || !atrAvailable {
		return false
	}
	return position.RaiseStop(price.Sub(overrides.ATRKStop.Mul(atr)))
}

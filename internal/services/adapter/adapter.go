// Package adapter maps forecast output into bounded runtime overrides. It is
// a pure function of (forecast, config, previous overrides): deterministic,
// no I/O, no clock reads beyond the caller-supplied timestamp.
package adapter

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

// kReturnScale and dropReturnScale reproduce the production mapping: a +1%
// predicted return tightens the stop multiplier by 0.05 and narrows the DCA
// drop trigger by 0.3pp.
var (
	kReturnScale    = decimal.NewFromInt(5)
	dropReturnScale = decimal.NewFromFloat(0.3)
	hundred         = decimal.NewFromInt(100)
)

// ThresholdAdapter derives RuntimeOverrides on its own, slower cadence.
type ThresholdAdapter struct {
	logger *zap.Logger
}

// New returns a threshold adapter.
func New(logger *zap.Logger) *ThresholdAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdAdapter{logger: logger}
}

// Adapt computes the next overrides from the forecast. Outputs are always
// clamped to the configured bounds; values inside the hysteresis deadband of
// the previous overrides keep the previous value to avoid thrashing.
func (a *ThresholdAdapter) Adapt(cfg config.Config, fc domain.ForecastState, prev domain.RuntimeOverrides, now time.Time) domain.RuntimeOverrides {
	predReturn := decimal.NewFromFloat(fc.Value)

	// positive expectation tightens the stop, negative widens it; higher
	// forecast uncertainty lands on the wide side through the same term
	k := cfg.ATRMultiplier.Sub(predReturn.Mul(kReturnScale))
	k = clamp(k, cfg.ATRKMin, cfg.ATRKMax)

	// negative expectation widens the drop trigger (harder to hit)
	drop := cfg.DCADropPercent.Sub(predReturn.Mul(hundred).Mul(dropReturnScale))
	drop = clamp(drop, cfg.DCADropMin, cfg.DCADropMax)

	enableSwing := cfg.TradingMode == domain.ModeHybrid &&
		fc.Value > 0 &&
		fc.Strength > cfg.SwingMinStrength

	next := domain.RuntimeOverrides{
		DCADropPercent: holdWithinDeadband(prev.DCADropPercent, drop, cfg.AdapterDeadband),
		ATRKStop:       holdWithinDeadband(prev.ATRKStop, k, cfg.AdapterDeadband),
		EnableSwing:    enableSwing,
		UpdatedAt:      now,
	}

	a.logger.Info("runtime overrides adapted",
		zap.Float64("pred_return", fc.Value),
		zap.Float64("strength", fc.Strength),
		zap.String("dca_drop_percent", next.DCADropPercent.String()),
		zap.String("atr_k_stop", next.ATRKStop.String()),
		zap.Bool("enable_swing", next.EnableSwing))

	return next
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// holdWithinDeadband keeps the previous value when the relative change is
// below the deadband fraction.
func holdWithinDeadband(prev, next, deadband decimal.Decimal) decimal.Decimal {
	if prev.IsZero() || deadband.IsZero() {
		return next
	}
	delta := next.Sub(prev).Abs().Div(prev.Abs())
	if delta.LessThan(deadband) {
		return prev
	}
	return next
}

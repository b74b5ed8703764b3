package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuntimeOverrides are the adaptation-layer parameters that modulate strategy
// thresholds between cycles. Owned by the threshold adapter, read by the
// strategy manager every cycle; values persist until the next successful
// adaptation run.
type RuntimeOverrides struct {
	DCADropPercent decimal.Decimal `json:"dca_drop_percent"`
	ATRKStop       decimal.Decimal `json:"atr_k_stop"`
	EnableSwing    bool            `json:"enable_swing"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DefaultOverrides returns the baseline overrides derived from static config
// values, used before the first adaptation run.
func DefaultOverrides(dropPercent, atrK decimal.Decimal) RuntimeOverrides {
	return RuntimeOverrides{
		DCADropPercent: dropPercent,
		ATRKStop:       atrK,
		EnableSwing:    false,
	}
}

// ForecastState is the forecaster output consumed by the threshold adapter.
// Value is the predicted next-period fractional return; Strength grades the
// size of the predicted move into [0,1]; Sigma is the residual standard
// deviation of the fit.
type ForecastState struct {
	Value      float64   `json:"value"`
	Strength   float64   `json:"strength"`
	Sigma      float64   `json:"sigma"`
	ComputedAt time.Time `json:"computed_at"`
}

package domain

import "github.com/shopspring/decimal"

// TradingMode selects which strategy evaluators the manager consults.
type TradingMode string

const (
	ModeDCAOnly TradingMode = "dca_only"
	ModeHybrid  TradingMode = "hybrid"
)

// Valid reports whether the mode is a known value.
func (m TradingMode) Valid() bool {
	return m == ModeDCAOnly || m == ModeHybrid
}

// EngineState is the full mutable engine state handed into each cycle and
// returned updated. Keeping it an explicit value (not an ambient singleton)
// is what lets the backtest engine reuse the identical decision logic.
type EngineState struct {
	Portfolio Portfolio        `json:"portfolio"`
	Position  *Position        `json:"position,omitempty"`
	DCARef    DCAReference     `json:"dca_reference"`
	Overrides RuntimeOverrides `json:"overrides"`
	// SpentUSD is the cumulative accumulation spend, checked against the
	// configured budget.
	SpentUSD decimal.Decimal `json:"spent_usd"`
}

// Clone returns a deep copy of the state.
func (s EngineState) Clone() EngineState {
	clone := s
	clone.Position = s.Position.Clone()
	return clone
}

// Package risk implements the portfolio-level drawdown gate. When drawdown
// reaches the configured ceiling the gate pauses new entries for the cycle;
// position monitoring keeps running so an existing stop can still fire.
package risk

import (
	"github.com/shopspring/decimal"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

// Verdict is the gate decision for one cycle. Re-evaluated every cycle; the
// pause lifts by itself once drawdown recovers.
type Verdict struct {
	Drawdown    decimal.Decimal
	Paused      bool
	BlockCloses bool
}

// Gate evaluates drawdown against the ceiling.
type Gate struct {
	maxDrawdown decimal.Decimal
	comparison  string
	blockCloses bool
}

// NewGate builds a gate from config.
func NewGate(cfg config.Config) *Gate {
	return &Gate{
		maxDrawdown: cfg.MaxDrawdown,
		comparison:  cfg.PauseComparison,
		blockCloses: cfg.PauseBlocksClose,
	}
}

// Drawdown returns (peak - equity) / peak, and zero when no peak exists yet.
func Drawdown(portfolio domain.Portfolio, price decimal.Decimal) decimal.Decimal {
	if portfolio.PeakEquity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	dd := portfolio.PeakEquity.Sub(portfolio.Equity(price)).Div(portfolio.PeakEquity)
	if dd.IsNegative() {
		return decimal.Zero
	}
	return dd
}

// Check computes the verdict for the current cycle.
func (g *Gate) Check(portfolio domain.Portfolio, price decimal.Decimal) Verdict {
	dd := Drawdown(portfolio, price)

	paused := false
	switch g.comparison {
	case config.PauseGT:
		paused = dd.GreaterThan(g.maxDrawdown)
	default:
		paused = dd.GreaterThanOrEqual(g.maxDrawdown)
	}

	return Verdict{
		Drawdown:    dd,
		Paused:      paused,
		BlockCloses: paused && g.blockCloses,
	}
}

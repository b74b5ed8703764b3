package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Portfolio is the paper portfolio bookkeeping. It is mutated exclusively by
// applying confirmed fills; PeakEquity is a running maximum and only ever
// increases.
type Portfolio struct {
	Cash        decimal.Decimal `json:"cash"`
	BTCHeld     decimal.Decimal `json:"btc_held"`
	PeakEquity  decimal.Decimal `json:"peak_equity"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// NewPortfolio returns a portfolio funded with the given cash budget.
func NewPortfolio(cash decimal.Decimal) Portfolio {
	return Portfolio{
		Cash:        cash,
		BTCHeld:     decimal.Zero,
		PeakEquity:  cash,
		RealizedPnL: decimal.Zero,
	}
}

// Equity returns mark-to-market equity at the given price.
func (p Portfolio) Equity(price decimal.Decimal) decimal.Decimal {
	return p.Cash.Add(p.BTCHeld.Mul(price))
}

// ObservePeak raises PeakEquity when current equity exceeds it.
func (p *Portfolio) ObservePeak(price decimal.Decimal) {
	if eq := p.Equity(price); eq.GreaterThan(p.PeakEquity) {
		p.PeakEquity = eq
	}
}

// ApplyBuy debits cash and credits BTC for a confirmed buy fill.
func (p *Portfolio) ApplyBuy(amountUSD, btcAmount decimal.Decimal) error {
	if amountUSD.LessThanOrEqual(decimal.Zero) || btcAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("buy fill must be positive, got %s USD / %s BTC", amountUSD, btcAmount)
	}
	remaining := p.Cash.Sub(amountUSD)
	if remaining.IsNegative() {
		return ErrNegativeCash
	}
	p.Cash = remaining
	p.BTCHeld = p.BTCHeld.Add(btcAmount)
	return nil
}

// ApplySell credits sale proceeds, debits BTC and records realized P&L.
func (p *Portfolio) ApplySell(btcAmount, proceedsUSD, pnl decimal.Decimal) error {
	if btcAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("sell fill must be positive, got %s BTC", btcAmount)
	}
	if p.BTCHeld.LessThan(btcAmount) {
		return fmt.Errorf("insufficient BTC: have %s need %s", p.BTCHeld, btcAmount)
	}
	p.BTCHeld = p.BTCHeld.Sub(btcAmount)
	p.Cash = p.Cash.Add(proceedsUSD)
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	return nil
}

// Validate checks portfolio invariants. PeakEquity starts at the full budget
// and fills conserve equity at the fill price, so cash can never legitimately
// exceed the recorded peak; a snapshot where it does is corrupted.
func (p Portfolio) Validate() error {
	if p.Cash.IsNegative() {
		return ErrNegativeCash
	}
	if p.PeakEquity.LessThan(p.Cash) {
		return ErrPeakRegression
	}
	return nil
}

package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position is the single allowed open tactical position. Created by a swing
// open intent, destroyed by a close intent; the stop is fixed at entry unless
// trailing is enabled in configuration.
type Position struct {
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopPrice  decimal.Decimal `json:"stop_price"`
	SizeUSD    decimal.Decimal `json:"size_usd"`
	BTCAmount  decimal.Decimal `json:"btc_amount"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// NewPosition constructs a validated position.
func NewPosition(entryPrice, stopPrice, sizeUSD decimal.Decimal, openedAt time.Time) (*Position, error) {
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("entry price must be greater than zero")
	}
	if sizeUSD.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position size must be greater than zero")
	}
	if stopPrice.GreaterThanOrEqual(entryPrice) {
		return nil, errors.Errorf("stop price %s must be below entry price %s", stopPrice, entryPrice)
	}
	return &Position{
		EntryPrice: entryPrice,
		StopPrice:  stopPrice,
		SizeUSD:    sizeUSD,
		BTCAmount:  sizeUSD.Div(entryPrice),
		OpenedAt:   openedAt,
	}, nil
}

// StopHit reports whether the stop fires at the given price.
func (p *Position) StopHit(price decimal.Decimal) bool {
	return p != nil && price.LessThanOrEqual(p.StopPrice)
}

// RealizedPnL returns P&L for closing the full position at exitPrice:
// size_usd * (exit - entry) / entry.
func (p *Position) RealizedPnL(exitPrice decimal.Decimal) decimal.Decimal {
	if p == nil || p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return p.SizeUSD.Mul(exitPrice.Sub(p.EntryPrice)).Div(p.EntryPrice)
}

// RaiseStop lifts the stop to the given level. Used only by the trailing
// stop policy; the stop never moves down.
func (p *Position) RaiseStop(stop decimal.Decimal) bool {
	if p == nil || stop.LessThanOrEqual(p.StopPrice) {
		return false
	}
	p.StopPrice = stop
	return true
}

// Clone returns a copy so callers never share mutable position state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

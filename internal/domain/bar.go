package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLC observation in the trailing market window.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func (b Bar) TrueRange(prevClose decimal.Decimal) decimal.Decimal {
	tr := b.High.Sub(b.Low)
	if hc := b.High.Sub(prevClose).Abs(); hc.GreaterThan(tr) {
		tr = hc
	}
	if lc := b.Low.Sub(prevClose).Abs(); lc.GreaterThan(tr) {
		tr = lc
	}
	return tr
}

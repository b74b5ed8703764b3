// Package indicators provides the volatility and context indicators used by
// the decision engine (Wilder ATR, EMA, RSI).
package indicators

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"adaptrader/internal/domain"
)

// DefaultATRPeriod is Wilder's classic 14-bar period.
const DefaultATRPeriod = 14

// ErrNotEnoughBars is returned when the window is shorter than the ATR
// period. Callers must treat it as "ATR unavailable" and block tactical
// entries; a numeric zero would collapse the stop to the entry price.
var ErrNotEnoughBars = errors.New("not enough bars for ATR")

// ATRSeries computes Wilder's Average True Range over the bar window.
// The value at index i corresponds to bars[period-1+i]: the series is seeded
// with the simple average of the first period true ranges, then smoothed with
// atr += (tr - atr) / period.
func ATRSeries(bars []domain.Bar, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, errors.Errorf("ATR period must be positive, got %d", period)
	}
	if len(bars) < period {
		return nil, ErrNotEnoughBars
	}

	trs := trueRanges(bars)
	n := decimal.NewFromInt(int64(period))

	seed := decimal.Zero
	for _, tr := range trs[:period] {
		seed = seed.Add(tr)
	}
	atr := seed.Div(n)

	series := make([]decimal.Decimal, 0, len(trs)-period+1)
	series = append(series, atr)
	for _, tr := range trs[period:] {
		atr = atr.Add(tr.Sub(atr).Div(n))
		series = append(series, atr)
	}
	return series, nil
}

// ATR returns the latest Wilder ATR value for the window.
func ATR(bars []domain.Bar, period int) (decimal.Decimal, error) {
	series, err := ATRSeries(bars, period)
	if err != nil {
		return decimal.Zero, err
	}
	return series[len(series)-1], nil
}

// trueRanges returns the true range per bar. The first bar has no previous
// close, so its true range is the plain high-low span.
func trueRanges(bars []domain.Bar) []decimal.Decimal {
	trs := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		if i == 0 {
			trs[i] = b.High.Sub(b.Low)
			continue
		}
		trs[i] = b.TrueRange(bars[i-1].Close)
	}
	return trs
}

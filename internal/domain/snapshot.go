package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContextSummary holds derived market context attached to a snapshot.
// It is informational only (notifications, logs); the decision path never
// depends on it.
type ContextSummary struct {
	EMA20 decimal.Decimal
	RSI14 decimal.Decimal
	Trend TrendDirection
}

// TrendDirection qualitative direction of price action.
type TrendDirection string

const (
	TrendBullish TrendDirection = "bullish"
	TrendBearish TrendDirection = "bearish"
	TrendNeutral TrendDirection = "neutral"
)

// MarketSnapshot is the immutable per-cycle market input: latest price plus
// the trailing bar window used for ATR and forecasting.
type MarketSnapshot struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Bars      []Bar
	Context   *ContextSummary
}

// NewMarketSnapshot builds a snapshot from a bar window. The latest close is
// the cycle price when no explicit price is set by the collector.
func NewMarketSnapshot(ts time.Time, price decimal.Decimal, bars []Bar) MarketSnapshot {
	if price.IsZero() && len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}
	return MarketSnapshot{Timestamp: ts, Price: price, Bars: bars}
}

// Closes returns the close series of the bar window.
func (s MarketSnapshot) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

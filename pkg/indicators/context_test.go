package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adaptrader/internal/domain"
)

func trendBars(n int, step int64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		p := decimal.NewFromInt(20000 + int64(i)*step)
		bars = append(bars, domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p.Add(decimal.NewFromInt(40)),
			Low:       p.Sub(decimal.NewFromInt(40)),
			Close:     p,
			Volume:    decimal.NewFromInt(1),
		})
	}
	return bars
}

func TestBuildContextUptrend(t *testing.T) {
	summary, err := BuildContext(trendBars(60, 50))
	require.NoError(t, err)
	require.Equal(t, domain.TrendBullish, summary.Trend)
	require.True(t, summary.EMA20.LessThan(decimal.NewFromInt(23000)))
	require.True(t, summary.RSI14.GreaterThan(decimal.NewFromInt(50)), "rising closes push RSI above midline")
}

func TestBuildContextDowntrend(t *testing.T) {
	summary, err := BuildContext(trendBars(60, -50))
	require.NoError(t, err)
	require.Equal(t, domain.TrendBearish, summary.Trend)
	require.True(t, summary.RSI14.LessThan(decimal.NewFromInt(50)))
}

func TestBuildContextTooFewBars(t *testing.T) {
	_, err := BuildContext(trendBars(10, 50))
	require.Error(t, err)
}

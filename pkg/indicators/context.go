package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"adaptrader/internal/domain"
)

const (
	emaPeriod = 20
	rsiPeriod = 14
)

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, errors.Errorf("not enough data points for EMA: need %d, got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, errors.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out), nil
}

// BuildContext derives the informational context summary attached to market
// snapshots. It is never part of the decision path, so an error here just
// means "no context".
func BuildContext(bars []domain.Bar) (*domain.ContextSummary, error) {
	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ema, err := CalculateEMA(closes, emaPeriod)
	if err != nil {
		return nil, err
	}
	rsi, err := CalculateRSI(closes, rsiPeriod)
	if err != nil {
		return nil, err
	}

	price := closes[len(closes)-1]
	latestEMA := ema[len(ema)-1]
	latestRSI := rsi[len(rsi)-1]

	trendDir := domain.TrendNeutral
	if price.GreaterThan(latestEMA) {
		trendDir = domain.TrendBullish
	} else if price.LessThan(latestEMA) {
		trendDir = domain.TrendBearish
	}

	return &domain.ContextSummary{
		EMA20: latestEMA,
		RSI14: latestRSI,
		Trend: trendDir,
	}, nil
}

func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}

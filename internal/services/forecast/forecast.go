// Package forecast implements the short-memory price forecaster. It fits an
// ARIMA(1,1,2) model over the most recent close window and emits a one-step
// predicted fractional return. The fit is refreshed from scratch on every
// adaptation run; no incremental state survives between fits.
package forecast

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/internal/domain"
)

const (
	// DefaultMinWindow is the shortest close window the fit accepts.
	DefaultMinWindow = 20
	// DefaultMaxWindow caps the window so old regimes stop influencing
	// the fit.
	DefaultMaxWindow = 300

	longARMaxOrder = 10
	// strengthScale grades the predicted move against a 1% reference.
	strengthScale = 0.01
)

var (
	// ErrWindowTooShort means there is not enough history to fit; callers
	// must keep the previous runtime overrides unchanged.
	ErrWindowTooShort = errors.New("forecast window too short")
	// ErrFitDegenerate means the series is flat or the normal equations
	// are singular; callers keep previous overrides, same as above.
	ErrFitDegenerate = errors.New("forecast fit degenerate")
)

// Forecaster fits the model. Safe for reuse across runs; each call is
// independent and deterministic for identical input.
type Forecaster struct {
	logger    *zap.Logger
	minWindow int
	maxWindow int
}

// New returns a forecaster with the default window bounds.
func New(logger *zap.Logger) *Forecaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forecaster{logger: logger, minWindow: DefaultMinWindow, maxWindow: DefaultMaxWindow}
}

// Forecast fits ARIMA(1,1,2) on the close series and returns the one-step
// forecast state. The fit uses the Hannan-Rissanen two-stage procedure:
// a long autoregression supplies innovation estimates, then the AR and MA
// coefficients come from a single least-squares regression on lagged values
// and lagged innovations. No randomness anywhere.
func (f *Forecaster) Forecast(closes []decimal.Decimal, now time.Time) (domain.ForecastState, error) {
	series := tailFloats(closes, f.maxWindow)
	n := len(series)
	if n < f.minWindow {
		return domain.ForecastState{}, errors.Wrapf(ErrWindowTooShort, "have %d closes, need %d", n, f.minWindow)
	}

	last := series[n-1]
	if last <= 0 {
		return domain.ForecastState{}, errors.Wrap(ErrFitDegenerate, "non-positive last close")
	}

	// one differencing step
	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = series[i] - series[i-1]
	}

	mean := meanOf(diffs)
	centered := make([]float64, len(diffs))
	variance := 0.0
	for i, d := range diffs {
		centered[i] = d - mean
		variance += centered[i] * centered[i]
	}
	variance /= float64(len(centered))
	if variance < 1e-12 {
		return domain.ForecastState{}, errors.Wrap(ErrFitDegenerate, "zero-variance window")
	}

	innovations, err := longARInnovations(centered)
	if err != nil {
		return domain.ForecastState{}, err
	}

	phi, theta1, theta2, sigma, err := fitARMA12(centered, innovations)
	if err != nil {
		return domain.ForecastState{}, err
	}

	m := len(centered)
	diffHat := mean + phi*centered[m-1] + theta1*innovations[m-1] + theta2*innovations[m-2]
	predReturn := diffHat / last

	strength := math.Abs(predReturn) / strengthScale
	if strength > 1 {
		strength = 1
	}

	f.logger.Debug("forecast fitted",
		zap.Float64("phi", phi),
		zap.Float64("theta1", theta1),
		zap.Float64("theta2", theta2),
		zap.Float64("pred_return", predReturn),
		zap.Float64("sigma", sigma))

	return domain.ForecastState{
		Value:      predReturn,
		Strength:   strength,
		Sigma:      sigma,
		ComputedAt: now,
	}, nil
}

// longARInnovations fits a long AR model by Levinson-Durbin on the sample
// autocovariances and returns the residual series as innovation estimates.
// Entries before the AR order stay zero.
func longARInnovations(centered []float64) ([]float64, error) {
	m := len(centered)
	p := m / 4
	if p > longARMaxOrder {
		p = longARMaxOrder
	}
	if p < 1 {
		p = 1
	}

	acov := make([]float64, p+1)
	for lag := 0; lag <= p; lag++ {
		s := 0.0
		for t := lag; t < m; t++ {
			s += centered[t] * centered[t-lag]
		}
		acov[lag] = s / float64(m)
	}

	coefs, err := levinsonDurbin(acov, p)
	if err != nil {
		return nil, err
	}

	innov := make([]float64, m)
	for t := p; t < m; t++ {
		pred := 0.0
		for i := 1; i <= p; i++ {
			pred += coefs[i-1] * centered[t-i]
		}
		innov[t] = centered[t] - pred
	}
	return innov, nil
}

// levinsonDurbin solves the Yule-Walker equations for AR(p) coefficients.
func levinsonDurbin(acov []float64, p int) ([]float64, error) {
	if acov[0] <= 0 {
		return nil, errors.Wrap(ErrFitDegenerate, "non-positive variance")
	}

	coefs := make([]float64, p)
	prev := make([]float64, p)
	errVar := acov[0]

	for k := 1; k <= p; k++ {
		acc := acov[k]
		for i := 1; i < k; i++ {
			acc -= prev[i-1] * acov[k-i]
		}
		if errVar <= 1e-15 {
			return nil, errors.Wrap(ErrFitDegenerate, "levinson recursion collapsed")
		}
		reflection := acc / errVar

		coefs[k-1] = reflection
		for i := 1; i < k; i++ {
			coefs[i-1] = prev[i-1] - reflection*prev[k-i-1]
		}
		copy(prev, coefs[:k])

		errVar *= 1 - reflection*reflection
	}
	return coefs, nil
}

// fitARMA12 regresses the centered diffs on [lagged diff, two lagged
// innovations] and returns (phi, theta1, theta2, residual sigma).
func fitARMA12(centered, innov []float64) (float64, float64, float64, float64, error) {
	m := len(centered)
	// need two innovation lags; skip the zero-filled warmup region
	start := 3
	for start < m && innov[start-2] == 0 && innov[start-1] == 0 {
		start++
	}
	if m-start < 8 {
		return 0, 0, 0, 0, errors.Wrap(ErrFitDegenerate, "too few regression rows")
	}

	var xtx [3][3]float64
	var xty [3]float64
	for t := start; t < m; t++ {
		row := [3]float64{centered[t-1], innov[t-1], innov[t-2]}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * centered[t]
		}
	}

	beta, err := solve3(xtx, xty)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	sse := 0.0
	for t := start; t < m; t++ {
		fitted := beta[0]*centered[t-1] + beta[1]*innov[t-1] + beta[2]*innov[t-2]
		resid := centered[t] - fitted
		sse += resid * resid
	}
	sigma := math.Sqrt(sse / float64(m-start))

	return beta[0], beta[1], beta[2], sigma, nil
}

// solve3 solves a 3x3 linear system by Gaussian elimination with partial
// pivoting.
func solve3(a [3][3]float64, b [3]float64) ([3]float64, error) {
	var out [3]float64

	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return out, errors.Wrap(ErrFitDegenerate, "singular normal equations")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < 3; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < 3; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	for r := 2; r >= 0; r-- {
		acc := b[r]
		for c := r + 1; c < 3; c++ {
			acc -= a[r][c] * out[c]
		}
		out[r] = acc / a[r][r]
	}
	return out, nil
}

func tailFloats(closes []decimal.Decimal, limit int) []float64 {
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i], _ = c.Float64()
	}
	return out
}

func meanOf(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

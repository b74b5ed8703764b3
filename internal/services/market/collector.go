// Package market fetches kline windows from exchanges and turns them into
// decision-cycle snapshots.
package market

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/internal/domain"
	"adaptrader/pkg/indicators"
)

const fetchTimeout = 30 * time.Second

// Collector fetches a window of historical bars for a symbol.
type Collector interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error)
}

// SnapshotProvider builds a full market snapshot from a collector: the bar
// window, the latest price and the derived context summary.
type SnapshotProvider struct {
	collector Collector
	logger    *zap.Logger
	symbol    string
	interval  string
	window    int
}

// NewSnapshotProvider returns a snapshot provider.
func NewSnapshotProvider(collector Collector, symbol, interval string, window int, logger *zap.Logger) (*SnapshotProvider, error) {
	if collector == nil {
		return nil, errors.New("collector is required")
	}
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if window < 1 {
		return nil, errors.Errorf("window must be positive, got %d", window)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotProvider{
		collector: collector,
		logger:    logger,
		symbol:    symbol,
		interval:  interval,
		window:    window,
	}, nil
}

// Snapshot fetches the current window and assembles the snapshot. The price
// is the latest close; the context summary is best-effort and omitted when
// the window is too short for the indicators.
func (p *SnapshotProvider) Snapshot(ctx context.Context, now time.Time) (domain.MarketSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	bars, err := p.collector.FetchBars(fetchCtx, p.symbol, p.interval, p.window)
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrapf(err, "fetch %s bars", p.symbol)
	}
	if len(bars) == 0 {
		return domain.MarketSnapshot{}, errors.Errorf("no bars returned for %s", p.symbol)
	}

	snap := domain.NewMarketSnapshot(now, decimal.Zero, bars)

	if summary, err := indicators.BuildContext(bars); err == nil {
		snap.Context = summary
	} else {
		p.logger.Debug("context summary unavailable", zap.Error(err))
	}

	return snap, nil
}

// RetryingCollector retries transient fetch failures with exponential
// backoff before giving up.
type RetryingCollector struct {
	inner      Collector
	logger     *zap.Logger
	maxElapsed time.Duration
}

// NewRetryingCollector wraps a collector with retries.
func NewRetryingCollector(inner Collector, maxElapsed time.Duration, logger *zap.Logger) *RetryingCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	return &RetryingCollector{inner: inner, logger: logger, maxElapsed: maxElapsed}
}

// FetchBars retries the wrapped fetch until it succeeds or the elapsed
// budget runs out.
func (r *RetryingCollector) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	var bars []domain.Bar

	operation := func() error {
		var err error
		bars, err = r.inner.FetchBars(ctx, symbol, interval, limit)
		if err != nil {
			r.logger.Warn("kline fetch failed, retrying", zap.String("symbol", symbol), zap.Error(err))
		}
		return err
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = r.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, errors.Wrap(err, "after retries")
	}
	return bars, nil
}

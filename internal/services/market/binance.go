package market

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"adaptrader/internal/domain"
)

// BinanceCollector fetches klines from Binance.
type BinanceCollector struct {
	client *binance.Client
}

// NewBinanceCollector returns a Binance-backed collector. Public kline
// endpoints need no credentials; empty keys are fine for read-only use.
func NewBinanceCollector(apiKey, secretKey string) *BinanceCollector {
	return &BinanceCollector{client: binance.NewClient(apiKey, secretKey)}
}

// FetchBars fetches kline data from Binance.
func (c *BinanceCollector) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	klines, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	bars := make([]domain.Bar, len(klines))
	for i, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		bars[i] = domain.Bar{
			Timestamp: time.Unix(0, k.OpenTime*int64(time.Millisecond)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		}
	}

	return bars, nil
}

package market

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"adaptrader/internal/domain"
)

const bybitCategory = bybit.CategoryV5Spot

var bybitIntervals = map[string]bybit.Interval{
	"1m":  bybit.Interval1,
	"5m":  bybit.Interval5,
	"15m": bybit.Interval15,
	"30m": bybit.Interval30,
	"1h":  bybit.Interval60,
	"4h":  bybit.Interval240,
	"1d":  bybit.IntervalD,
}

// BybitCollector fetches klines from Bybit V5.
type BybitCollector struct {
	client *bybit.Client
}

// NewBybitCollector returns a Bybit-backed collector.
func NewBybitCollector(apiKey, secretKey string) *BybitCollector {
	client := bybit.NewClient()
	if apiKey != "" {
		client = client.WithAuth(apiKey, secretKey)
	}
	return &BybitCollector{client: client}
}

// FetchBars fetches kline data from Bybit. Bybit returns klines newest
// first; the result is reversed into chronological order.
func (c *BybitCollector) FetchBars(_ context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	bybitInterval, ok := bybitIntervals[interval]
	if !ok {
		return nil, errors.Errorf("unsupported Bybit interval %q", interval)
	}

	resp, err := c.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybitCategory,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybitInterval,
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get klines from Bybit for %s", symbol)
	}
	if len(resp.Result.List) == 0 {
		return nil, errors.New("no klines data received from Bybit")
	}

	list := resp.Result.List
	bars := make([]domain.Bar, len(list))
	for i, k := range list {
		startMs, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time: %s", k.StartTime)
		}

		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price: %s", k.Open)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price: %s", k.High)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price: %s", k.Low)
		}
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price: %s", k.Close)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume: %s", k.Volume)
		}

		// newest first in the response
		bars[len(list)-1-i] = domain.Bar{
			Timestamp: time.Unix(0, startMs*int64(time.Millisecond)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		}
	}

	return bars, nil
}

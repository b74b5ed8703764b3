package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

type staticCollector struct {
	bars []domain.Bar
}

func (s *staticCollector) FetchBars(context.Context, string, string, int) ([]domain.Bar, error) {
	return s.bars, nil
}

// flatBars returns n hourly bars at the given close with a fixed span.
func flatBars(n int, close int64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		p := decimal.NewFromInt(close)
		bars = append(bars, domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p.Add(decimal.NewFromInt(60)),
			Low:       p.Sub(decimal.NewFromInt(60)),
			Close:     p,
			Volume:    decimal.NewFromInt(5),
		})
	}
	return bars
}

func testBotConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = filepath.Join(t.TempDir(), "wal")
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.WindowSize = 60
	return cfg
}

// A first run seeds the reference; a restart over the same state dir resumes
// that state and buys once the price has dropped past the threshold.
func TestBotCycleExecutesAndPersists(t *testing.T) {
	cfg := testBotConfig(t)

	first, err := NewTradingBotWithCollector(cfg, &staticCollector{bars: flatBars(60, 20000)}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, first.Cycle(context.Background()))
	require.True(t, first.state.DCARef.Price.Equal(decimal.NewFromInt(20000)))
	require.True(t, first.state.Portfolio.Cash.Equal(cfg.BudgetUSD), "flat price, no buy")
	require.NoError(t, first.Close())

	// 4% below the seeded reference
	second, err := NewTradingBotWithCollector(cfg, &staticCollector{bars: flatBars(60, 19200)}, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	require.True(t, second.state.DCARef.Price.Equal(decimal.NewFromInt(20000)), "state restored from WAL")

	require.NoError(t, second.Cycle(context.Background()))
	require.True(t, second.state.Portfolio.Cash.Equal(decimal.NewFromInt(9500)))
	require.True(t, second.state.SpentUSD.Equal(decimal.NewFromInt(500)))
	require.True(t, second.state.DCARef.Price.Equal(decimal.NewFromInt(19200)))
	require.False(t, second.state.DCARef.Timestamp.IsZero())

	trades, err := second.ledger.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, domain.IntentDCABuy, trades[0].Kind)
}

func TestBotAdaptKeepsOverridesOnShortWindow(t *testing.T) {
	cfg := testBotConfig(t)

	bot, err := NewTradingBotWithCollector(cfg, &staticCollector{bars: flatBars(5, 20000)}, zap.NewNop())
	require.NoError(t, err)
	defer bot.Close()

	before := bot.state.Overrides
	require.NoError(t, bot.Adapt(context.Background()))
	require.True(t, bot.state.Overrides.DCADropPercent.Equal(before.DCADropPercent))
	require.True(t, bot.state.Overrides.UpdatedAt.Equal(before.UpdatedAt))
}

func TestBotRejectsUnknownPlatform(t *testing.T) {
	cfg := testBotConfig(t)
	cfg.Platform = "kraken"

	_, err := createCollector(cfg)
	require.Error(t, err)
}

package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

func newTestState(cfg config.Config) domain.EngineState {
	return domain.EngineState{
		Portfolio: domain.NewPortfolio(cfg.BudgetUSD),
		Overrides: domain.DefaultOverrides(cfg.DCADropPercent, cfg.ATRMultiplier),
	}
}

func snapshotAt(price int64, ts time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Timestamp: ts,
		Price:     decimal.NewFromInt(price),
	}
}

func intentOfKind(t *testing.T, intents []domain.TradeIntent, kind domain.IntentKind) domain.TradeIntent {
	t.Helper()
	for _, it := range intents {
		if it.Kind == kind {
			return it
		}
	}
	t.Fatalf("no %s intent in %v", kind, intents)
	return domain.TradeIntent{}
}

func hasKind(intents []domain.TradeIntent, kind domain.IntentKind) bool {
	for _, it := range intents {
		if it.Kind == kind {
			return true
		}
	}
	return false
}

// A 4% drop from the seeded reference against the default 3% threshold must
// produce exactly one accumulation buy intent.
func TestStepDCABuyOnDrop(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	state := newTestState(cfg)
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	res, err := m.Step(cfg, snapshotAt(19200, ts), state)
	require.NoError(t, err)
	require.False(t, res.Paused)

	buy := intentOfKind(t, res.Intents, domain.IntentDCABuy)
	require.True(t, buy.AmountUSD.Equal(decimal.NewFromInt(500)))
	require.NotEmpty(t, buy.ID)

	// the decision alone does not move the portfolio or the reference
	require.True(t, res.State.Portfolio.Cash.Equal(cfg.BudgetUSD))
	require.True(t, res.State.DCARef.Price.Equal(decimal.NewFromInt(20000)))
}

func TestStepSeedsReferenceOnFirstCycle(t *testing.T) {
	cfg := config.Default()
	m := NewManager(nil)
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	res, err := m.Step(cfg, snapshotAt(20000, ts), newTestState(cfg))
	require.NoError(t, err)
	require.Empty(t, res.Intents)
	require.True(t, res.State.DCARef.Price.Equal(decimal.NewFromInt(20000)))
	require.True(t, res.State.DCARef.Timestamp.IsZero())
}

// A close of 19799 against a 19800 stop yields exactly one close intent for
// the full position.
func TestStepStopHitEmitsClose(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19800), decimal.NewFromInt(500), ts.Add(-time.Hour))
	require.NoError(t, err)

	state := newTestState(cfg)
	state.Portfolio.Cash = decimal.NewFromInt(9500)
	state.Portfolio.BTCHeld = position.BTCAmount
	state.Position = position
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	res, err := m.Step(cfg, snapshotAt(19799, ts), state)
	require.NoError(t, err)

	closeIntent := intentOfKind(t, res.Intents, domain.IntentSwingClose)
	require.True(t, closeIntent.AmountUSD.Equal(decimal.NewFromInt(500)))
	require.True(t, closeIntent.BTCAmount.Equal(position.BTCAmount))
	require.False(t, hasKind(res.Intents, domain.IntentSwingOpen))
	require.False(t, hasKind(res.Intents, domain.IntentDCABuy), "1% drop is below the threshold")
}

// At the drawdown ceiling the gate pauses entries while the stop close still
// fires under the default policy.
func TestStepPauseSuppressesEntriesNotCloses(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19800), decimal.NewFromInt(500), ts.Add(-time.Hour))
	require.NoError(t, err)

	state := newTestState(cfg)
	// equity 7000 against the 10000 peak is a 30% drawdown
	state.Portfolio.Cash = decimal.NewFromInt(7000)
	state.Portfolio.BTCHeld = decimal.Zero
	state.Position = position
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	res, err := m.Step(cfg, snapshotAt(19000, ts), state)
	require.NoError(t, err)
	require.True(t, res.Paused)
	require.True(t, res.Drawdown.GreaterThanOrEqual(cfg.MaxDrawdown))

	require.False(t, hasKind(res.Intents, domain.IntentDCABuy), "19000 is a deep enough drop, only the pause suppresses it")
	require.False(t, hasKind(res.Intents, domain.IntentSwingOpen))
	require.True(t, hasKind(res.Intents, domain.IntentSwingClose))
}

func TestStepPauseBlocksCloseWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.PauseBlocksClose = true
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19800), decimal.NewFromInt(500), ts.Add(-time.Hour))
	require.NoError(t, err)

	state := newTestState(cfg)
	state.Portfolio.Cash = decimal.NewFromInt(7000)
	state.Position = position
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	res, err := m.Step(cfg, snapshotAt(19000, ts), state)
	require.NoError(t, err)
	require.True(t, res.Paused)
	require.Empty(t, res.Intents)
}

func TestStepRejectsInvalidPortfolio(t *testing.T) {
	cfg := config.Default()
	m := NewManager(nil)

	state := newTestState(cfg)
	state.Portfolio.Cash = decimal.NewFromInt(-1)

	_, err := m.Step(cfg, snapshotAt(20000, time.Now()), state)
	require.ErrorIs(t, err, domain.ErrNegativeCash)
}

func TestCommitDCABuyMovesReference(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	state := newTestState(cfg)
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	intent := domain.TradeIntent{
		ID:        "intent-1",
		Kind:      domain.IntentDCABuy,
		AmountUSD: decimal.NewFromInt(500),
		Price:     decimal.NewFromInt(19200),
		Time:      ts,
	}
	fill := domain.Fill{
		Price:     decimal.NewFromInt(19200),
		AmountUSD: decimal.NewFromInt(500),
		BTCAmount: decimal.NewFromInt(500).Div(decimal.NewFromInt(19200)),
	}

	next, record, err := m.Commit(state, intent, fill)
	require.NoError(t, err)
	require.True(t, next.Portfolio.Cash.Equal(decimal.NewFromInt(9500)))
	require.True(t, next.SpentUSD.Equal(decimal.NewFromInt(500)))
	require.True(t, next.DCARef.Price.Equal(decimal.NewFromInt(19200)))
	require.Equal(t, ts, next.DCARef.Timestamp)
	require.Equal(t, domain.IntentDCABuy, record.Kind)

	// the input state is untouched
	require.True(t, state.Portfolio.Cash.Equal(cfg.BudgetUSD))
	require.True(t, state.SpentUSD.IsZero())
}

func TestCommitSwingOpenRejectsDuplicate(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	state := newTestState(cfg)
	intent := domain.TradeIntent{
		ID:        "intent-2",
		Kind:      domain.IntentSwingOpen,
		AmountUSD: decimal.NewFromInt(500),
		Price:     decimal.NewFromInt(20000),
		StopPrice: decimal.NewFromInt(19550),
		Time:      ts,
	}
	fill := domain.Fill{
		Price:     decimal.NewFromInt(20000),
		AmountUSD: decimal.NewFromInt(500),
		BTCAmount: decimal.NewFromFloat(0.025),
	}

	next, record, err := m.Commit(state, intent, fill)
	require.NoError(t, err)
	require.NotNil(t, next.Position)
	require.True(t, next.Position.StopPrice.Equal(decimal.NewFromInt(19550)))
	require.Equal(t, domain.IntentSwingOpen, record.Kind)

	_, _, err = m.Commit(next, intent, fill)
	require.ErrorIs(t, err, domain.ErrDuplicatePosition)
}

func TestCommitSwingCloseRealizesPnL(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19800), decimal.NewFromInt(500), ts.Add(-time.Hour))
	require.NoError(t, err)

	state := newTestState(cfg)
	state.Portfolio.Cash = decimal.NewFromInt(9500)
	state.Portfolio.BTCHeld = position.BTCAmount
	state.Position = position

	intent := domain.TradeIntent{
		ID:        "intent-3",
		Kind:      domain.IntentSwingClose,
		AmountUSD: position.SizeUSD,
		BTCAmount: position.BTCAmount,
		Price:     decimal.NewFromInt(19799),
		Time:      ts,
	}
	fill := domain.Fill{
		Price:     decimal.NewFromInt(19799),
		AmountUSD: position.BTCAmount.Mul(decimal.NewFromInt(19799)),
		BTCAmount: position.BTCAmount,
	}

	next, record, err := m.Commit(state, intent, fill)
	require.NoError(t, err)
	require.Nil(t, next.Position)
	// 500 * (19799-20000)/20000 = -5.025
	require.True(t, record.PnL.Equal(decimal.NewFromFloat(-5.025)), "got %s", record.PnL)
	require.True(t, next.Portfolio.RealizedPnL.Equal(decimal.NewFromFloat(-5.025)))
	require.True(t, next.Portfolio.BTCHeld.IsZero())
}

// A position holding nearly all the cash must not let a later drop emit a
// buy the portfolio cannot fund; the cycle skips the buy and still closes
// the position on its stop.
func TestStepSkipsBuyBeyondCash(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19550), decimal.NewFromInt(9800), ts.Add(-time.Hour))
	require.NoError(t, err)

	state := newTestState(cfg)
	state.Portfolio.Cash = decimal.NewFromInt(200)
	state.Portfolio.BTCHeld = position.BTCAmount
	state.Position = position
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	// 19200 is a 4% drop past the 3% threshold, but only 200 cash remains
	res, err := m.Step(cfg, snapshotAt(19200, ts), state)
	require.NoError(t, err)
	require.False(t, res.Paused)
	require.False(t, hasKind(res.Intents, domain.IntentDCABuy))
	require.True(t, hasKind(res.Intents, domain.IntentSwingClose))
}

// Within one cycle an accumulation intent reserves its cash, so the tactical
// entry cannot claim the same dollars.
func TestStepReservesCashAcrossIntents(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	bars := rampBars(ts, 19200, 40)
	snap := domain.MarketSnapshot{Timestamp: ts, Price: decimal.NewFromInt(19200), Bars: bars}

	state := newTestState(cfg)
	state.Overrides.EnableSwing = true
	state.Portfolio.Cash = decimal.NewFromInt(700)
	state.Portfolio.BTCHeld = decimal.NewFromFloat(0.5)
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	res, err := m.Step(cfg, snap, state)
	require.NoError(t, err)
	require.True(t, hasKind(res.Intents, domain.IntentDCABuy))
	require.False(t, hasKind(res.Intents, domain.IntentSwingOpen), "700 cash covers one 500 intent, not two")

	// with cash for both, the same cycle emits both
	state.Portfolio.Cash = decimal.NewFromInt(1200)
	res, err = m.Step(cfg, snap, state)
	require.NoError(t, err)
	require.True(t, hasKind(res.Intents, domain.IntentDCABuy))
	require.True(t, hasKind(res.Intents, domain.IntentSwingOpen))
}

// After a committed open the very next cycle must not emit another open.
func TestAtMostOnePosition(t *testing.T) {
	cfg := config.Default()
	m := NewManager(zap.NewNop())
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	state := newTestState(cfg)
	state.Overrides.EnableSwing = true
	state.DCARef = domain.DCAReference{Price: decimal.NewFromInt(20000)}

	bars := rampBars(ts, 20000, 40)
	snap := domain.MarketSnapshot{Timestamp: ts, Price: decimal.NewFromInt(20000), Bars: bars}

	res, err := m.Step(cfg, snap, state)
	require.NoError(t, err)
	open := intentOfKind(t, res.Intents, domain.IntentSwingOpen)

	fill := domain.Fill{
		Price:     snap.Price,
		AmountUSD: open.AmountUSD,
		BTCAmount: open.AmountUSD.Div(snap.Price),
	}
	committed, _, err := m.Commit(res.State, open, fill)
	require.NoError(t, err)

	res2, err := m.Step(cfg, snap, committed)
	require.NoError(t, err)
	require.False(t, hasKind(res2.Intents, domain.IntentSwingOpen))
}

// rampBars builds a flat-ish hourly bar series with a fixed high-low span so
// the ATR is available and positive.
func rampBars(start time.Time, base int64, n int) []domain.Bar {
	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		p := decimal.NewFromInt(base)
		bars = append(bars, domain.Bar{
			Timestamp: start.Add(time.Duration(i-n) * time.Hour),
			Open:      p,
			High:      p.Add(decimal.NewFromInt(120)),
			Low:       p.Sub(decimal.NewFromInt(80)),
			Close:     p,
			Volume:    decimal.NewFromInt(10),
		})
	}
	return bars
}

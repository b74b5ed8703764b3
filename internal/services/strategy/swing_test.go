package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

func hybridOverrides() domain.RuntimeOverrides {
	ov := domain.DefaultOverrides(decimal.NewFromInt(3), decimal.NewFromFloat(1.5))
	ov.EnableSwing = true
	return ov
}

func TestSwingEntryOpensWithATRStop(t *testing.T) {
	cfg := config.Default()
	price := decimal.NewFromInt(20000)
	atr := decimal.NewFromInt(300)

	e := SwingEvaluator{}.EvaluateEntry(cfg, price, atr, true, hybridOverrides(), nil, cfg.BudgetUSD, false)
	require.True(t, e.Open)
	require.True(t, e.AmountUSD.Equal(cfg.SwingAmountUSD))
	// stop = 20000 - 1.5*300
	require.True(t, e.StopPrice.Equal(decimal.NewFromInt(19550)), "got %s", e.StopPrice)
}

func TestSwingEntryGating(t *testing.T) {
	cfg := config.Default()
	price := decimal.NewFromInt(20000)
	atr := decimal.NewFromInt(300)
	position, err := domain.NewPosition(price, decimal.NewFromInt(19550), decimal.NewFromInt(500), time.Now())
	require.NoError(t, err)

	dcaOnly := cfg
	dcaOnly.TradingMode = domain.ModeDCAOnly

	disabled := hybridOverrides()
	disabled.EnableSwing = false

	testCases := []struct {
		name         string
		cfg          config.Config
		overrides    domain.RuntimeOverrides
		atr          decimal.Decimal
		atrAvailable bool
		position     *domain.Position
		cash         decimal.Decimal
		paused       bool
		reason       string
	}{
		{"dca only mode", dcaOnly, hybridOverrides(), atr, true, nil, cfg.BudgetUSD, false, "mode_not_hybrid"},
		{"adaptation disabled swing", cfg, disabled, atr, true, nil, cfg.BudgetUSD, false, "swing_disabled"},
		{"paused gate", cfg, hybridOverrides(), atr, true, nil, cfg.BudgetUSD, true, "risk_paused"},
		{"atr unavailable", cfg, hybridOverrides(), decimal.Zero, false, nil, cfg.BudgetUSD, false, "atr_unavailable"},
		{"atr zero", cfg, hybridOverrides(), decimal.Zero, true, nil, cfg.BudgetUSD, false, "atr_unavailable"},
		{"position open", cfg, hybridOverrides(), atr, true, position, cfg.BudgetUSD, false, "position_already_open"},
		{"cash below size", cfg, hybridOverrides(), atr, true, nil, decimal.NewFromInt(200), false, "insufficient_cash"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := SwingEvaluator{}.EvaluateEntry(tc.cfg, price, tc.atr, tc.atrAvailable, tc.overrides, tc.position, tc.cash, tc.paused)
			require.False(t, e.Open)
			require.Equal(t, tc.reason, e.Reason)
		})
	}
}

func TestSwingEntryRejectsNonPositiveStop(t *testing.T) {
	cfg := config.Default()
	e := SwingEvaluator{}.EvaluateEntry(cfg, decimal.NewFromInt(100), decimal.NewFromInt(300), true, hybridOverrides(), nil, cfg.BudgetUSD, false)
	require.False(t, e.Open)
	require.Equal(t, "stop_below_zero", e.Reason)
}

func TestSwingMonitorStopBoundary(t *testing.T) {
	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19800), decimal.NewFromInt(500), time.Now())
	require.NoError(t, err)

	exit := SwingEvaluator{}.Monitor(decimal.NewFromInt(19801), position, false)
	require.False(t, exit.Close)

	exit = SwingEvaluator{}.Monitor(decimal.NewFromInt(19800), position, false)
	require.True(t, exit.Close)

	exit = SwingEvaluator{}.Monitor(decimal.NewFromInt(19799), position, false)
	require.True(t, exit.Close)
	require.Equal(t, "stop_hit", exit.Reason)
}

func TestSwingMonitorBlockClosesPolicy(t *testing.T) {
	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19800), decimal.NewFromInt(500), time.Now())
	require.NoError(t, err)

	exit := SwingEvaluator{}.Monitor(decimal.NewFromInt(19000), position, true)
	require.False(t, exit.Close)
	require.Equal(t, "closes_blocked_by_policy", exit.Reason)
}

func TestSwingTrailStopOnlyRaises(t *testing.T) {
	cfg := config.Default()
	cfg.TrailingStop = true
	atr := decimal.NewFromInt(100)
	ov := hybridOverrides()

	position, err := domain.NewPosition(decimal.NewFromInt(20000), decimal.NewFromInt(19850), decimal.NewFromInt(500), time.Now())
	require.NoError(t, err)

	// price rallied: 21000 - 150 = 20850
	moved := SwingEvaluator{}.TrailStop(cfg, decimal.NewFromInt(21000), atr, true, ov, position)
	require.True(t, moved)
	require.True(t, position.StopPrice.Equal(decimal.NewFromInt(20850)))

	// price fell back: candidate stop is lower, keep the raised one
	moved = SwingEvaluator{}.TrailStop(cfg, decimal.NewFromInt(20900), atr, true, ov, position)
	require.False(t, moved)
	require.True(t, position.StopPrice.Equal(decimal.NewFromInt(20850)))

	cfg.TrailingStop = false
	moved = SwingEvaluator{}.TrailStop(cfg, decimal.NewFromInt(25000), atr, true, ov, position)
	require.False(t, moved)
}

package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

func TestDCAEvaluateTriggersOnDrop(t *testing.T) {
	cfg := config.Default()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ref := domain.DCAReference{Price: decimal.NewFromInt(20000)}

	d := DCAEvaluator{}.Evaluate(cfg, decimal.NewFromInt(19200), now, ref, decimal.Zero, cfg.BudgetUSD, cfg.DCADropPercent, false)
	require.True(t, d.Triggered)
	require.True(t, d.AmountUSD.Equal(cfg.DCAAmountUSD))
}

func TestDCAEvaluatePreconditions(t *testing.T) {
	cfg := config.Default()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	droppedPrice := decimal.NewFromInt(19200)
	ref := domain.DCAReference{Price: decimal.NewFromInt(20000)}

	testCases := []struct {
		name   string
		price  decimal.Decimal
		ref    domain.DCAReference
		spent  decimal.Decimal
		cash   decimal.Decimal
		paused bool
		reason string
	}{
		{
			name:   "paused gate suppresses",
			price:  droppedPrice,
			ref:    ref,
			spent:  decimal.Zero,
			cash:   cfg.BudgetUSD,
			paused: true,
			reason: "risk_paused",
		},
		{
			name:   "no reference price",
			price:  droppedPrice,
			ref:    domain.DCAReference{},
			spent:  decimal.Zero,
			cash:   cfg.BudgetUSD,
			reason: "no_reference_price",
		},
		{
			name:   "drop too shallow",
			price:  decimal.NewFromInt(19500),
			ref:    ref,
			spent:  decimal.Zero,
			cash:   cfg.BudgetUSD,
			reason: "drop_below_threshold_3",
		},
		{
			name:   "interval not elapsed",
			price:  droppedPrice,
			ref:    domain.DCAReference{Price: decimal.NewFromInt(20000), Timestamp: now.Add(-time.Hour)},
			spent:  decimal.Zero,
			cash:   cfg.BudgetUSD,
			reason: "interval_not_elapsed",
		},
		{
			name:   "budget exhausted",
			price:  droppedPrice,
			ref:    ref,
			spent:  decimal.NewFromInt(9800),
			cash:   cfg.BudgetUSD,
			reason: "budget_exhausted",
		},
		{
			name:   "cash below amount",
			price:  droppedPrice,
			ref:    ref,
			spent:  decimal.NewFromInt(500),
			cash:   decimal.NewFromInt(200),
			reason: "insufficient_cash",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := DCAEvaluator{}.Evaluate(cfg, tc.price, now, tc.ref, tc.spent, tc.cash, cfg.DCADropPercent, tc.paused)
			require.False(t, d.Triggered)
			require.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestDCAEvaluateZeroTimestampSkipsInterval(t *testing.T) {
	cfg := config.Default()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// a seeded reference has a price but no executed-buy timestamp yet
	ref := domain.DCAReference{Price: decimal.NewFromInt(20000)}
	d := DCAEvaluator{}.Evaluate(cfg, decimal.NewFromInt(19000), now, ref, decimal.Zero, cfg.BudgetUSD, cfg.DCADropPercent, false)
	require.True(t, d.Triggered)
}

func TestDCAEvaluateExactBudgetBoundary(t *testing.T) {
	cfg := config.Default()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ref := domain.DCAReference{Price: decimal.NewFromInt(20000)}

	// spent + amount == budget is still allowed
	d := DCAEvaluator{}.Evaluate(cfg, decimal.NewFromInt(19200), now, ref, decimal.NewFromInt(9500), cfg.BudgetUSD, cfg.DCADropPercent, false)
	require.True(t, d.Triggered)
}

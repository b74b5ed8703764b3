package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"adaptrader/config"
	"adaptrader/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// DCAEvaluator decides whether the scheduled accumulation buy triggers this
// cycle. Stateless: all inputs arrive as arguments.
type DCAEvaluator struct{}

// DCADecision is the evaluation result. A false Triggered with a reason is a
// normal no-action cycle, not an error.
type DCADecision struct {
	Triggered bool
	AmountUSD decimal.Decimal
	Reason    string
}

// Evaluate checks the trigger preconditions in order: gate not paused, price
// dropped enough from the reference, minimum interval elapsed, budget
// remaining, and cash covering the amount. Any single failure yields no
// action; the reference is never touched here.
func (DCAEvaluator) Evaluate(
	cfg config.Config,
	price decimal.Decimal,
	now time.Time,
	ref domain.DCAReference,
	spentUSD decimal.Decimal,
	cash decimal.Decimal,
	dropPercent decimal.Decimal,
	paused bool,
) DCADecision {
	if paused {
		return DCADecision{Reason: "risk_paused"}
	}

	if ref.Price.LessThanOrEqual(decimal.Zero) {
		return DCADecision{Reason: "no_reference_price"}
	}

	trigger := ref.Price.Mul(decimal.NewFromInt(1).Sub(dropPercent.Div(hundred)))
	if price.GreaterThan(trigger) {
		return DCADecision{Reason: fmt.Sprintf("drop_below_threshold_%s", dropPercent)}
	}

	if !ref.Timestamp.IsZero() && now.Sub(ref.Timestamp) < cfg.DCAMinInterval {
		return DCADecision{Reason: "interval_not_elapsed"}
	}

	if spentUSD.Add(cfg.DCAAmountUSD).GreaterThan(cfg.BudgetUSD) {
		return DCADecision{Reason: "budget_exhausted"}
	}

	if cfg.DCAAmountUSD.GreaterThan(cash) {
		return DCADecision{Reason: "insufficient_cash"}
	}

	return DCADecision{
		Triggered: true,
		AmountUSD: cfg.DCAAmountUSD,
		Reason:    "price_dropped_from_reference",
	}
}

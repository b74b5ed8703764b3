// Package trader provides intent execution. The engine trades on paper: the
// broker simulates fills at the decision price and never touches an
// exchange order endpoint.
package trader

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/internal/domain"
)

// Broker executes trade intents and reports fills. Implementations must be
// idempotent per intent ID: re-executing a confirmed intent returns the
// original fill instead of trading twice.
type Broker interface {
	Execute(ctx context.Context, intent domain.TradeIntent) (domain.Fill, error)
}

// PaperBroker fills every intent at the intent's decision price. Filled
// intent IDs are remembered so a retried cycle cannot double-fill.
type PaperBroker struct {
	mu     sync.Mutex
	logger *zap.Logger
	filled map[string]domain.Fill
}

// NewPaperBroker returns a paper broker.
func NewPaperBroker(logger *zap.Logger) *PaperBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperBroker{
		logger: logger,
		filled: make(map[string]domain.Fill),
	}
}

// Execute simulates the fill. Buys convert the USD amount at the intent
// price; closes sell the intent's BTC amount back to USD.
func (b *PaperBroker) Execute(_ context.Context, intent domain.TradeIntent) (domain.Fill, error) {
	if intent.ID == "" {
		return domain.Fill{}, errors.New("intent has no id")
	}
	if intent.Price.LessThanOrEqual(decimal.Zero) {
		return domain.Fill{}, errors.Errorf("intent %s has non-positive price %s", intent.ID, intent.Price)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fill, ok := b.filled[intent.ID]; ok {
		b.logger.Warn("intent already filled, returning original fill", zap.String("intent_id", intent.ID))
		return fill, nil
	}

	var fill domain.Fill
	switch intent.Kind {
	case domain.IntentDCABuy, domain.IntentSwingOpen:
		if intent.AmountUSD.LessThanOrEqual(decimal.Zero) {
			return domain.Fill{}, errors.Errorf("buy intent %s has non-positive amount %s", intent.ID, intent.AmountUSD)
		}
		fill = domain.Fill{
			Price:     intent.Price,
			AmountUSD: intent.AmountUSD,
			BTCAmount: intent.AmountUSD.Div(intent.Price),
		}
	case domain.IntentSwingClose:
		if intent.BTCAmount.LessThanOrEqual(decimal.Zero) {
			return domain.Fill{}, errors.Errorf("close intent %s has non-positive btc amount %s", intent.ID, intent.BTCAmount)
		}
		fill = domain.Fill{
			Price:     intent.Price,
			AmountUSD: intent.BTCAmount.Mul(intent.Price),
			BTCAmount: intent.BTCAmount,
		}
	default:
		return domain.Fill{}, errors.Errorf("unknown intent kind %q", intent.Kind)
	}

	b.filled[intent.ID] = fill
	b.logger.Info("paper fill",
		zap.String("intent_id", intent.ID),
		zap.String("kind", string(intent.Kind)),
		zap.String("price", fill.Price.String()),
		zap.String("amount_usd", fill.AmountUSD.String()),
		zap.String("btc", fill.BTCAmount.String()))
	return fill, nil
}

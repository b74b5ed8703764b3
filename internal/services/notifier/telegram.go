// Package notifier delivers trade and risk events to Telegram. Delivery is
// fire-and-forget: a failed send is logged and never blocks a cycle.
package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adaptrader/internal/domain"
)

// Notifier publishes engine events.
type Notifier interface {
	TradeExecuted(rec domain.TradeRecord)
	RiskPaused(drawdown, ceiling decimal.Decimal)
	PortfolioStatus(equity, cash, btcHeld, realizedPnL decimal.Decimal)
}

// telegramSender is the slice of the Bot API the notifier uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends messages to a chat via the Bot API.
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "init telegram bot")
	}

	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// TradeExecuted announces an executed trade.
func (n *TelegramNotifier) TradeExecuted(rec domain.TradeRecord) {
	var text string
	switch rec.Kind {
	case domain.IntentDCABuy:
		text = fmt.Sprintf("🟢 DCA buy: $%s at %s (%s BTC)", rec.SizeUSD, rec.Price, rec.BTCAmount)
	case domain.IntentSwingOpen:
		text = fmt.Sprintf("📈 Swing opened: $%s at %s", rec.SizeUSD, rec.Price)
	case domain.IntentSwingClose:
		text = fmt.Sprintf("📉 Swing closed at %s, PnL %s", rec.Price, rec.PnL)
	default:
		text = fmt.Sprintf("trade executed: %s at %s", rec.Kind, rec.Price)
	}
	n.send(text)
}

// RiskPaused announces that the drawdown gate paused new entries.
func (n *TelegramNotifier) RiskPaused(drawdown, ceiling decimal.Decimal) {
	n.send(fmt.Sprintf("⛔ Entries paused: drawdown %s exceeds ceiling %s", drawdown, ceiling))
}

// PortfolioStatus sends a periodic portfolio summary.
func (n *TelegramNotifier) PortfolioStatus(equity, cash, btcHeld, realizedPnL decimal.Decimal) {
	n.send(fmt.Sprintf("💼 Equity $%s | cash $%s | %s BTC | realized PnL $%s",
		equity.StringFixed(2), cash.StringFixed(2), btcHeld, realizedPnL.StringFixed(2)))
}

// send dispatches the delivery on its own goroutine; the Bot API client has
// no request timeout, so a synchronous send could stall the caller's cycle.
func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	go func() {
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Warn("telegram send failed", zap.Error(err))
		}
	}()
}

// NopNotifier discards all events. Used when Telegram is not configured and
// in the backtest engine.
type NopNotifier struct{}

func (NopNotifier) TradeExecuted(domain.TradeRecord)            {}
func (NopNotifier) RiskPaused(decimal.Decimal, decimal.Decimal) {}
func (NopNotifier) PortfolioStatus(_, _, _, _ decimal.Decimal)  {}

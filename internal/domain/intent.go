package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentKind is the type of trade intent emitted by the strategy manager.
type IntentKind string

const (
	IntentDCABuy     IntentKind = "dca_buy"
	IntentSwingOpen  IntentKind = "swing_open"
	IntentSwingClose IntentKind = "swing_close"
)

// TradeIntent is a single requested trade for the current cycle. The manager
// emits intents; the broker collaborator executes them; only a confirmed fill
// mutates engine state.
type TradeIntent struct {
	ID        string          `json:"id"`
	Kind      IntentKind      `json:"kind"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	// BTCAmount is set only for close intents (the full position size).
	BTCAmount decimal.Decimal `json:"btc_amount"`
	// Price is the cycle price the decision was made at.
	Price decimal.Decimal `json:"price"`
	// StopPrice is set only for swing open intents.
	StopPrice decimal.Decimal `json:"stop_price"`
	Reason    string          `json:"reason"`
	Time      time.Time       `json:"time"`
}

// Fill is the broker confirmation for an executed intent.
type Fill struct {
	Price     decimal.Decimal `json:"price"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	BTCAmount decimal.Decimal `json:"btc_amount"`
}

// TradeRecord is an immutable, append-only ledger entry.
type TradeRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Kind      IntentKind      `json:"kind"`
	Price     decimal.Decimal `json:"price"`
	SizeUSD   decimal.Decimal `json:"size_usd"`
	BTCAmount decimal.Decimal `json:"btc_amount"`
	// PnL is the realized result, set only for closes.
	PnL decimal.Decimal `json:"pnl"`
}

// DCAReference is the price/time reference the next drop-percent trigger is
// measured from. Updated to the executed price on every accumulation buy,
// never on a no-trigger cycle.
type DCAReference struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

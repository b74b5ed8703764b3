// Package ledger records executed trades and the equity curve in SQLite for
// later inspection and reporting.
package ledger

import (
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"adaptrader/internal/domain"
)

// Ledger persists trades and equity samples. Decimal values are stored as
// text to keep them exact.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// Summary aggregates the recorded trade history.
type Summary struct {
	TradeCount  int
	CloseCount  int
	WinCount    int
	WinRate     decimal.Decimal
	RealizedPnL decimal.Decimal
	TotalBuyUSD decimal.Decimal
}

// NewLedger opens (or creates) the SQLite database and runs migrations.
func NewLedger(path string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open ledger db")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	l := &Ledger{db: db, logger: logger}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate ledger")
	}

	logger.Info("ledger opened", zap.String("path", path))
	return l, nil
}

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			price      TEXT NOT NULL,
			size_usd   TEXT NOT NULL,
			btc_amount TEXT NOT NULL,
			pnl        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,

		`CREATE TABLE IF NOT EXISTS equity_curve (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			equity    TEXT NOT NULL,
			drawdown  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_ts ON equity_curve(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "exec migration")
		}
	}
	return nil
}

// RecordTrade appends an executed trade.
func (l *Ledger) RecordTrade(rec domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO trades (timestamp, kind, price, size_usd, btc_amount, pnl) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(),
		string(rec.Kind),
		rec.Price.String(),
		rec.SizeUSD.String(),
		rec.BTCAmount.String(),
		rec.PnL.String(),
	)
	return errors.Wrap(err, "insert trade")
}

// RecordEquity appends an equity curve sample.
func (l *Ledger) RecordEquity(ts time.Time, equity, drawdown decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO equity_curve (timestamp, equity, drawdown) VALUES (?, ?, ?)`,
		ts.Unix(), equity.String(), drawdown.String(),
	)
	return errors.Wrap(err, "insert equity sample")
}

// Trades returns all recorded trades in chronological order.
func (l *Ledger) Trades() ([]domain.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT timestamp, kind, price, size_usd, btc_amount, pnl FROM trades ORDER BY timestamp, id`)
	if err != nil {
		return nil, errors.Wrap(err, "query trades")
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		var (
			ts                             int64
			kind                           string
			price, sizeUSD, btcAmount, pnl string
		)
		if err := rows.Scan(&ts, &kind, &price, &sizeUSD, &btcAmount, &pnl); err != nil {
			return nil, errors.Wrap(err, "scan trade row")
		}

		rec := domain.TradeRecord{
			Timestamp: time.Unix(ts, 0).UTC(),
			Kind:      domain.IntentKind(kind),
		}
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parse trade price")
		}
		if rec.SizeUSD, err = decimal.NewFromString(sizeUSD); err != nil {
			return nil, errors.Wrap(err, "parse trade size")
		}
		if rec.BTCAmount, err = decimal.NewFromString(btcAmount); err != nil {
			return nil, errors.Wrap(err, "parse trade btc amount")
		}
		if rec.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, errors.Wrap(err, "parse trade pnl")
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "iterate trades")
}

// Summarize computes aggregate statistics over the trade history. Win rate
// counts only closed tactical trades.
func (l *Ledger) Summarize() (Summary, error) {
	trades, err := l.Trades()
	if err != nil {
		return Summary{}, err
	}
	return Summarize(trades), nil
}

// Summarize aggregates a trade slice without touching the database; the
// backtest engine reuses it on in-memory results.
func Summarize(trades []domain.TradeRecord) Summary {
	s := Summary{
		WinRate:     decimal.Zero,
		RealizedPnL: decimal.Zero,
		TotalBuyUSD: decimal.Zero,
	}

	for _, rec := range trades {
		s.TradeCount++
		switch rec.Kind {
		case domain.IntentDCABuy, domain.IntentSwingOpen:
			s.TotalBuyUSD = s.TotalBuyUSD.Add(rec.SizeUSD)
		case domain.IntentSwingClose:
			s.CloseCount++
			s.RealizedPnL = s.RealizedPnL.Add(rec.PnL)
			if rec.PnL.GreaterThan(decimal.Zero) {
				s.WinCount++
			}
		}
	}

	if s.CloseCount > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinCount)).Div(decimal.NewFromInt(int64(s.CloseCount)))
	}
	return s
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Package config loads and validates engine configuration from YAML or CLI
// flags. Validation happens once at load time, before any cycle runs; the
// core treats the resulting Config as read-only.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"adaptrader/internal/domain"
)

// Pause comparison policies for the risk gate.
const (
	PauseGTE = "gte"
	PauseGT  = "gt"
)

// Config is the static baseline parameter set, loaded once per run.
type Config struct {
	TradingMode domain.TradingMode
	Platform    string
	Symbol      string

	BudgetUSD      decimal.Decimal
	DCAAmountUSD   decimal.Decimal
	SwingAmountUSD decimal.Decimal

	DCADropPercent decimal.Decimal
	DCAMinInterval time.Duration

	ATRPeriod     int
	ATRMultiplier decimal.Decimal

	MaxDrawdown decimal.Decimal

	// adaptation clamps and policy
	DCADropMin       decimal.Decimal
	DCADropMax       decimal.Decimal
	ATRKMin          decimal.Decimal
	ATRKMax          decimal.Decimal
	SwingMinStrength float64
	AdapterDeadband  decimal.Decimal

	// risk-pause policy (the comparison and close-blocking semantics are
	// deliberately configurable)
	PauseComparison  string
	PauseBlocksClose bool
	TrailingStop     bool

	// live cadences (cron specs, robfig syntax)
	CycleSpec string
	AdaptSpec string

	BarInterval string
	WindowSize  int

	StateDir   string
	LedgerPath string

	TelegramToken  string
	TelegramChatID int64
}

// ConfigTmp is the YAML file shape. Decimal fields travel as strings and
// are parsed during load; the setup wizard marshals this struct back out.
type ConfigTmp struct {
	TradingMode string `yaml:"trading_mode"`
	Platform    string `yaml:"platform"`
	Symbol      string `yaml:"symbol"`

	BudgetUSD      string `yaml:"budget_usd"`
	DCAAmountUSD   string `yaml:"dca_amount_usd"`
	SwingAmountUSD string `yaml:"swing_amount_usd"`

	DCADropPercent string        `yaml:"dca_drop_percent"`
	DCAMinInterval time.Duration `yaml:"dca_min_interval"`

	ATRPeriod     int    `yaml:"atr_period"`
	ATRMultiplier string `yaml:"atr_multiplier"`

	MaxDrawdown string `yaml:"max_drawdown"`

	DCADropMin       string  `yaml:"dca_drop_min"`
	DCADropMax       string  `yaml:"dca_drop_max"`
	ATRKMin          string  `yaml:"atr_k_min"`
	ATRKMax          string  `yaml:"atr_k_max"`
	SwingMinStrength float64 `yaml:"swing_min_strength"`
	AdapterDeadband  string  `yaml:"adapter_deadband"`

	PauseComparison  string `yaml:"pause_comparison"`
	PauseBlocksClose bool   `yaml:"pause_blocks_close"`
	TrailingStop     bool   `yaml:"trailing_stop"`

	CycleSpec string `yaml:"cycle_spec"`
	AdaptSpec string `yaml:"adapt_spec"`

	BarInterval string `yaml:"bar_interval"`
	WindowSize  int    `yaml:"window_size"`

	StateDir   string `yaml:"state_dir"`
	LedgerPath string `yaml:"ledger_path"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

// Default returns the baseline configuration matching the production
// defaults (10k budget, $500 DCA at a 3% drop, 24h interval, 14-bar ATR with
// a 1.5 multiplier, 25% drawdown ceiling).
func Default() Config {
	return Config{
		TradingMode:      domain.ModeHybrid,
		Platform:         "binance",
		Symbol:           "BTCUSDT",
		BudgetUSD:        decimal.NewFromInt(10000),
		DCAAmountUSD:     decimal.NewFromInt(500),
		SwingAmountUSD:   decimal.NewFromInt(500),
		DCADropPercent:   decimal.NewFromInt(3),
		DCAMinInterval:   24 * time.Hour,
		ATRPeriod:        14,
		ATRMultiplier:    decimal.NewFromFloat(1.5),
		MaxDrawdown:      decimal.NewFromFloat(0.25),
		DCADropMin:       decimal.NewFromInt(1),
		DCADropMax:       decimal.NewFromInt(8),
		ATRKMin:          decimal.NewFromInt(1),
		ATRKMax:          decimal.NewFromFloat(2.5),
		SwingMinStrength: 0.2,
		AdapterDeadband:  decimal.NewFromFloat(0.05),
		PauseComparison:  PauseGTE,
		CycleSpec:        "@every 30m",
		AdaptSpec:        "@every 1h",
		BarInterval:      "1h",
		WindowSize:       300,
		StateDir:         "./wal/engine",
		LedgerPath:       "./data/ledger.db",
	}
}

// Get resolves configuration: a YAML file when --config is given, otherwise
// defaults adjusted by CLI flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	mode := flag.String("mode", "", "trading mode: dca_only or hybrid")
	budget := flag.String("budget", "", "total budget in USD")
	flag.Parse()

	if *configPath != "" {
		return FromFile(*configPath)
	}

	cfg := Default()
	if *mode != "" {
		cfg.TradingMode = domain.TradingMode(*mode)
	}
	if *budget != "" {
		b, err := decimal.NewFromString(*budget)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --budget provided, --budget=%s", *budget)
		}
		cfg.BudgetUSD = b
	}

	return cfg, cfg.Validate()
}

// FromFile loads and validates configuration from a YAML file.
func FromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}

	cfg := Default()
	if tmp.TradingMode != "" {
		cfg.TradingMode = domain.TradingMode(tmp.TradingMode)
	}
	if tmp.Platform != "" {
		cfg.Platform = tmp.Platform
	}
	if tmp.Symbol != "" {
		cfg.Symbol = tmp.Symbol
	}
	if err := overrideDecimal(&cfg.BudgetUSD, tmp.BudgetUSD, "budget_usd"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.DCAAmountUSD, tmp.DCAAmountUSD, "dca_amount_usd"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.SwingAmountUSD, tmp.SwingAmountUSD, "swing_amount_usd"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.DCADropPercent, tmp.DCADropPercent, "dca_drop_percent"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.ATRMultiplier, tmp.ATRMultiplier, "atr_multiplier"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.MaxDrawdown, tmp.MaxDrawdown, "max_drawdown"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.DCADropMin, tmp.DCADropMin, "dca_drop_min"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.DCADropMax, tmp.DCADropMax, "dca_drop_max"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.ATRKMin, tmp.ATRKMin, "atr_k_min"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.ATRKMax, tmp.ATRKMax, "atr_k_max"); err != nil {
		return Config{}, err
	}
	if err := overrideDecimal(&cfg.AdapterDeadband, tmp.AdapterDeadband, "adapter_deadband"); err != nil {
		return Config{}, err
	}
	if tmp.DCAMinInterval != 0 {
		cfg.DCAMinInterval = tmp.DCAMinInterval
	}
	if tmp.ATRPeriod != 0 {
		cfg.ATRPeriod = tmp.ATRPeriod
	}
	if tmp.SwingMinStrength != 0 {
		cfg.SwingMinStrength = tmp.SwingMinStrength
	}
	if tmp.PauseComparison != "" {
		cfg.PauseComparison = tmp.PauseComparison
	}
	cfg.PauseBlocksClose = tmp.PauseBlocksClose
	cfg.TrailingStop = tmp.TrailingStop
	if tmp.CycleSpec != "" {
		cfg.CycleSpec = tmp.CycleSpec
	}
	if tmp.AdaptSpec != "" {
		cfg.AdaptSpec = tmp.AdaptSpec
	}
	if tmp.BarInterval != "" {
		cfg.BarInterval = tmp.BarInterval
	}
	if tmp.WindowSize != 0 {
		cfg.WindowSize = tmp.WindowSize
	}
	if tmp.StateDir != "" {
		cfg.StateDir = tmp.StateDir
	}
	if tmp.LedgerPath != "" {
		cfg.LedgerPath = tmp.LedgerPath
	}
	cfg.TelegramToken = tmp.TelegramToken
	cfg.TelegramChatID = tmp.TelegramChatID

	return cfg, cfg.Validate()
}

// Validate rejects out-of-range parameters before any cycle runs.
func (c Config) Validate() error {
	if !c.TradingMode.Valid() {
		return fmt.Errorf("invalid trading_mode %q, want dca_only or hybrid", c.TradingMode)
	}
	if c.Platform != "binance" && c.Platform != "bybit" {
		return fmt.Errorf("invalid platform %q, want binance or bybit", c.Platform)
	}
	if c.BudgetUSD.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("budget_usd must be positive, got %s", c.BudgetUSD)
	}
	if c.DCAAmountUSD.LessThanOrEqual(decimal.Zero) || c.DCAAmountUSD.GreaterThan(c.BudgetUSD) {
		return fmt.Errorf("dca_amount_usd must be positive and within budget, got %s", c.DCAAmountUSD)
	}
	if c.SwingAmountUSD.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("swing_amount_usd must be positive, got %s", c.SwingAmountUSD)
	}
	if c.DCADropPercent.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("dca_drop_percent must be positive, got %s", c.DCADropPercent)
	}
	if c.DCAMinInterval <= 0 {
		return fmt.Errorf("dca_min_interval must be positive, got %s", c.DCAMinInterval)
	}
	if c.ATRPeriod < 1 {
		return fmt.Errorf("atr_period must be at least 1, got %d", c.ATRPeriod)
	}
	if c.ATRMultiplier.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("atr_multiplier must be positive, got %s", c.ATRMultiplier)
	}
	if c.MaxDrawdown.LessThanOrEqual(decimal.Zero) || c.MaxDrawdown.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max_drawdown must be in (0, 1], got %s", c.MaxDrawdown)
	}
	if c.DCADropMin.LessThanOrEqual(decimal.Zero) || !c.DCADropMin.LessThan(c.DCADropMax) {
		return fmt.Errorf("dca drop clamps must satisfy 0 < min < max, got [%s, %s]", c.DCADropMin, c.DCADropMax)
	}
	if c.ATRKMin.LessThanOrEqual(decimal.Zero) || !c.ATRKMin.LessThan(c.ATRKMax) {
		return fmt.Errorf("atr k clamps must satisfy 0 < min < max, got [%s, %s]", c.ATRKMin, c.ATRKMax)
	}
	if c.SwingMinStrength < 0 || c.SwingMinStrength > 1 {
		return fmt.Errorf("swing_min_strength must be in [0, 1], got %f", c.SwingMinStrength)
	}
	if c.PauseComparison != PauseGTE && c.PauseComparison != PauseGT {
		return fmt.Errorf("invalid pause_comparison %q, want gte or gt", c.PauseComparison)
	}
	if c.WindowSize < c.ATRPeriod {
		return fmt.Errorf("window_size %d must cover atr_period %d", c.WindowSize, c.ATRPeriod)
	}
	return nil
}

func overrideDecimal(dst *decimal.Decimal, raw, field string) error {
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("incorrect %q param in yaml config (must be a decimal): %w", field, err)
	}
	*dst = v
	return nil
}

// Package setup provides the interactive terminal wizard that generates a
// starter configuration file.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"adaptrader/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the chosen
// settings to config.gen.yaml.
func RunTUI() error {
	var (
		mode        string
		platform    string
		symbol      string
		budgetStr   string
		dcaAmount   string
		dropStr     string
		intervalStr string
		drawdownStr string
		tgToken     string
		confirm     bool
	)

	// defaults
	symbol = "BTCUSDT"
	budgetStr = "10000"
	dcaAmount = "500"
	dropStr = "3"
	intervalStr = "24h"
	drawdownStr = "0.25"

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ADAPTRADER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your accumulation engine.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MODE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose your trading mode").
				Options(
					huh.NewOption("DCA only (pure accumulation)", "dca_only"),
					huh.NewOption("Hybrid (accumulation + tactical swings)", "hybrid"),
				).
				Value(&mode),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ADAPTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: DATA SOURCE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select market data platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&platform),
			huh.NewInput().
				Title("Symbol").
				Description("Exchange symbol, e.g. BTCUSDT").
				Value(&symbol).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("symbol cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ADAPTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: BUDGET AND THRESHOLDS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Total budget (USD)").
				Value(&budgetStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Buy amount per DCA trade (USD)").
				Value(&dcaAmount).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Price drop to trigger a buy (%)").
				Value(&dropStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Minimum interval between buys").
				Description("Go duration, e.g. 24h").
				Value(&intervalStr).
				Validate(func(s string) error {
					if _, err := time.ParseDuration(s); err != nil {
						return fmt.Errorf("must be a valid duration")
					}
					return nil
				}),
			huh.NewInput().
				Title("Max drawdown before pausing (fraction)").
				Description("0.25 pauses new entries at a 25% drawdown").
				Value(&drawdownStr).
				Validate(validatePositiveDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ADAPTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: NOTIFICATIONS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Leave empty to disable notifications").
				Value(&tgToken),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ADAPTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Mode: %s\nPlatform: %s\nSymbol: %s\nBudget: $%s\nDCA amount: $%s at %s%% drop every %s\nMax drawdown: %s\n",
		mode, platform, symbol, budgetStr, dcaAmount, dropStr, intervalStr, drawdownStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	interval, _ := time.ParseDuration(intervalStr)

	cfgTmp := config.ConfigTmp{
		TradingMode:    mode,
		Platform:       platform,
		Symbol:         symbol,
		BudgetUSD:      budgetStr,
		DCAAmountUSD:   dcaAmount,
		DCADropPercent: dropStr,
		DCAMinInterval: interval,
		MaxDrawdown:    drawdownStr,
		TelegramToken:  tgToken,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", filename)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// Package setup implements the terminal configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pasiu/gridbot/config"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
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

// RunTUI launches the configuration wizard and writes the result to path.
func RunTUI(path string) error {
	defaults := config.DefaultFile()

	var (
		symbolsStr      string
		buyDropStr      string
		sellRiseStr     string
		stakeMode       string
		stakeAmountStr  string
		intervalStr     string
		profitMode      string
		alwaysOn        bool
		alwaysOnAmtStr  string
		confirm         bool
	)

	symbolsStr = strings.Join(defaults.Symbols, ",")
	buyDropStr = strconv.FormatFloat(defaults.BuyDropPercent, 'f', -1, 64)
	sellRiseStr = strconv.FormatFloat(defaults.SellRisePercent, 'f', -1, 64)
	stakeMode = defaults.StakeSettings.Mode
	stakeAmountStr = strconv.FormatFloat(defaults.StakeSettings.FixedAmount, 'f', -1, 64)
	intervalStr = strconv.Itoa(defaults.CheckIntervalSeconds)
	profitMode = defaults.ProfitMode
	alwaysOn = true
	alwaysOnAmtStr = strconv.FormatFloat(defaults.AlwaysOnAmount, 'f', -1, 64)

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your grid in a few steps.\n"))

	fmt.Println(stepStyle.Render("STEP 1: WATCH LIST"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Symbols").
				Description("Comma-separated tickers (e.g. AAPL,TSLA,NVDA)").
				Value(&symbolsStr).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("at least one symbol is required")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: GRID THRESHOLDS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Buy Drop %").
				Description("Price drop from the cheapest lot that triggers a buy (e.g. 1.0)").
				Value(&buyDropStr).
				Validate(validatePositiveNumber),
			huh.NewInput().
				Title("Sell Rise %").
				Description("Gain over a lot's buy price that triggers its sale (e.g. 2.0)").
				Value(&sellRiseStr).
				Validate(validatePositiveNumber),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: STAKE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Stake mode").
				Options(
					huh.NewOption("Fixed amount per trade", config.StakeModeFixed),
					huh.NewOption("Percent of account equity", config.StakeModePercent),
				).
				Value(&stakeMode),
			huh.NewInput().
				Title("Stake amount").
				Description("Currency amount in fixed mode, percent (1-100) in percent mode").
				Value(&stakeAmountStr).
				Validate(validatePositiveNumber),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: BEHAVIOR"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Profit mode").
				Options(
					huh.NewOption("TAKE: sell the whole lot, realize profit as cash", "TAKE"),
					huh.NewOption("LEAVE: recover cost, keep the profit as shares", "LEAVE"),
				).
				Value(&profitMode),
			huh.NewConfirm().
				Title("Always stay in the market?").
				Description("Re-enter with a small buy whenever a symbol has no open lots").
				Value(&alwaysOn),
			huh.NewInput().
				Title("Re-entry amount").
				Description("Used for the always-on buy (e.g. 1.0)").
				Value(&alwaysOnAmtStr).
				Validate(validatePositiveNumber),
			huh.NewInput().
				Title("Check interval (seconds)").
				Value(&intervalStr).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return fmt.Errorf("must be a positive integer")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Symbols: %s\nBuy drop: %s%%\nSell rise: %s%%\nStake: %s %s\nProfit mode: %s\nInterval: %ss\n",
		symbolsStr, buyDropStr, sellRiseStr, stakeMode, stakeAmountStr, profitMode, intervalStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
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

	file := config.DefaultFile()
	file.Symbols = splitSymbols(symbolsStr)
	file.BuyDropPercent, _ = strconv.ParseFloat(buyDropStr, 64)
	file.SellRisePercent, _ = strconv.ParseFloat(sellRiseStr, 64)
	file.StakeSettings.Mode = stakeMode
	amount, _ := strconv.ParseFloat(stakeAmountStr, 64)
	if stakeMode == config.StakeModePercent {
		file.StakeSettings.PercentAmount = amount
	} else {
		file.StakeSettings.FixedAmount = amount
	}
	file.ProfitMode = profitMode
	file.AlwaysOn = &alwaysOn
	file.AlwaysOnAmount, _ = strconv.ParseFloat(alwaysOnAmtStr, 64)
	file.CheckIntervalSeconds, _ = strconv.Atoi(strings.TrimSpace(intervalStr))

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\nConfiguration saved to %s\nStarting bot...", path)))
	return nil
}

func validatePositiveNumber(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol != "" {
			out = append(out, symbol)
		}
	}
	return out
}

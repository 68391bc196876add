// Package setup provides the interactive terminal wizard that generates a
// bot configuration file.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"pullback-trading-bot/config"
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

const generatedConfigFile = "config.gen.yaml"

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		pair               string
		pullbackStr        string
		profitStr          string
		useEmaFilter       bool
		trailingStop       bool
		trailingPercentStr string
		pollIntervalStr    string
		listenAddr         string
		network            string
		customBaseURL      string
		confirm            bool
	)

	// defaults
	pullbackStr = "5"
	profitStr = "1"
	trailingPercentStr = config.DefaultTrailingStopPercent
	pollIntervalStr = config.DefaultPollInterval.String()
	listenAddr = config.DefaultListenAddr

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("PULLBACK BOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Buy the dip, sell the bounce.\n"))

	fmt.Println(stepStyle.Render("STEP 1: ASSET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&pair).
				Validate(func(s string) error {
					_, err := config.PairFromString(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PULLBACK BOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: STRATEGY"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pullback %").
				Description("Drop from the recent maximum that triggers a buy (e.g. 5)").
				Value(&pullbackStr).
				Validate(validatePercent),
			huh.NewInput().
				Title("Profit Target %").
				Description("Gain over the entry price that triggers a sell (e.g. 1)").
				Value(&profitStr).
				Validate(validatePercent),
			huh.NewConfirm().
				Title("Require fast EMA above slow EMA for entries?").
				Value(&useEmaFilter),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PULLBACK BOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TRAILING STOP"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable trailing stop exits?").
				Value(&trailingStop),
		),
	).Run()
	if err != nil {
		return err
	}
	if trailingStop {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Trailing Stop Distance %").
					Description("Distance below the highest profitable price (e.g. 2)").
					Value(&trailingPercentStr).
					Validate(validatePercent),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PULLBACK BOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: TIMING AND SERVER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll Price Interval").
				Description("Duration string (e.g. 30s, 1m)").
				Value(&pollIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Status Server Address").
				Value(&listenAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PULLBACK BOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: NETWORK"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Exchange Network").
				Options(
					huh.NewOption("Binance Testnet", "testnet"),
					huh.NewOption("Binance Mainnet", "mainnet"),
					huh.NewOption("Custom URL", "custom"),
				).
				Value(&network),
		),
	).Run()
	if err != nil {
		return err
	}
	if network == "custom" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Exchange Base URL").
					Value(&customBaseURL).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("base URL cannot be empty")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PULLBACK BOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Pair: %s\nPullback: %s%%\nProfit target: %s%%\nEMA filter: %t\nTrailing stop: %t\nInterval: %s\nNetwork: %s\n",
		pair, pullbackStr, profitStr, useEmaFilter, trailingStop, pollIntervalStr, network,
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

	pollInterval, _ := time.ParseDuration(pollIntervalStr)

	cfgTmp := config.ConfigTmp{
		Pair:                pair,
		PullbackPercent:     pullbackStr,
		ProfitTargetPercent: profitStr,
		UseEmaFilter:        useEmaFilter,
		TrailingStop:        trailingStop,
		PollInterval:        pollInterval,
		ListenAddr:          listenAddr,
	}
	if trailingStop {
		cfgTmp.TrailingStopPercent = trailingPercentStr
	}
	switch network {
	case "mainnet":
		cfgTmp.BaseURL = "https://api.binance.com"
	case "custom":
		cfgTmp.BaseURL = customBaseURL
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(generatedConfigFile, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRun the bot with --config %s", generatedConfigFile, generatedConfigFile)))
	return nil
}

func validatePercent(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}

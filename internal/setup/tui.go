// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/publish"
	"github.com/vadiminshakov/fgi/internal/storage/ledger"
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

// answers collected by the wizard.
type answers struct {
	locale          string
	timezone        string
	backend         string
	ledgerDir       string
	spreadsheetID   string
	skipWeekendSeed bool
	yearAgoFallback string
	channels        []string
	failPolicy      string
	exchange        string
	pair            string
	hashtags        string
	metricsTextfile string
}

func defaultAnswers() answers {
	return answers{
		locale:          string(domain.LocaleJA),
		timezone:        config.DefaultTimezone,
		backend:         string(ledger.BackendWAL),
		ledgerDir:       ledger.DefaultDir,
		skipWeekendSeed: true,
		yearAgoFallback: "0",
		failPolicy:      string(publish.FailAll),
		pair:            "BTC_USDT",
	}
}

func header(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("FGI CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	a := defaultAnswers()
	var confirm bool

	header("STEP 1: PRESENTATION")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Daily fear & greed images, posted everywhere.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language of dates and posts").
				Options(
					huh.NewOption("Japanese", string(domain.LocaleJA)),
					huh.NewOption("English", string(domain.LocaleEN)),
				).
				Value(&a.locale),
			huh.NewInput().
				Title("Timezone").
				Description("IANA name used to decide what today is (e.g. Asia/Tokyo)").
				Value(&a.timezone).
				Validate(func(s string) error {
					_, err := time.LoadLocation(s)
					return err
				}),
			huh.NewInput().
				Title("Hashtags").
				Description("Space separated, optional").
				Value(&a.hashtags),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 2: HISTORY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the daily history live?").
				Options(
					huh.NewOption("Local write-ahead log", string(ledger.BackendWAL)),
					huh.NewOption("Google Sheets", string(ledger.BackendSheets)),
					huh.NewOption("PostgreSQL", string(ledger.BackendPostgres)),
				).
				Value(&a.backend),
			huh.NewConfirm().
				Title("Skip equity history on weekends?").
				Value(&a.skipWeekendSeed),
			huh.NewInput().
				Title("Year-ago fallback days").
				Description("0 requires an exact match one year back").
				Value(&a.yearAgoFallback).
				Validate(validateNonNegative),
		),
	).Run()
	if err != nil {
		return err
	}

	switch a.backend {
	case string(ledger.BackendWAL):
		err = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("WAL directory").Value(&a.ledgerDir),
		)).Run()
	case string(ledger.BackendSheets):
		err = huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Spreadsheet ID").
				Description("Credentials are read from " + config.EnvGoogleCredentials).
				Value(&a.spreadsheetID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("spreadsheet id cannot be empty")
					}
					return nil
				}),
		)).Run()
	}
	if err != nil {
		return err
	}

	header("STEP 3: CHANNELS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Publish to").
				Description("Credentials are read from the environment").
				Options(
					huh.NewOption("Misskey", "misskey"),
					huh.NewOption("X", "x"),
					huh.NewOption("Bluesky", "bluesky"),
				).
				Value(&a.channels),
			huh.NewSelect[string]().
				Title("When does a publish failure fail the run?").
				Options(
					huh.NewOption("Only if every channel failed", string(publish.FailAll)),
					huh.NewOption("If any channel failed", string(publish.FailAny)),
					huh.NewOption("Never", string(publish.FailNever)),
				).
				Value(&a.failPolicy),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 4: PRICE LINE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Add a spot price line?").
				Options(
					huh.NewOption("No", ""),
					huh.NewOption("Binance", config.ExchangeBinance),
					huh.NewOption("Bybit", config.ExchangeBybit),
				).
				Value(&a.exchange),
			huh.NewInput().
				Title("Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&a.pair).
				Validate(func(s string) error {
					_, err := domain.ParsePair(s)
					return err
				}),
			huh.NewInput().
				Title("Metrics textfile").
				Description("Optional node exporter textfile path").
				Value(&a.metricsTextfile),
		),
	).Run()
	if err != nil {
		return err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Locale: %s\nTimezone: %s\nHistory: %s\nChannels: %s\nFail policy: %s\n",
		a.locale, a.timezone, a.backend, strings.Join(a.channels, ", "), a.failPolicy,
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

	if err := write(path, buildConfig(a)); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

// buildConfig turns the answers into the YAML shape of the configuration file.
func buildConfig(a answers) config.ConfigTmp {
	skip := a.skipWeekendSeed
	fallback, _ := strconv.Atoi(strings.TrimSpace(a.yearAgoFallback))

	c := config.ConfigTmp{
		Locale:   a.locale,
		Timezone: a.timezone,
		Hashtags: strings.Fields(a.hashtags),
		Ledger: config.LedgerTmp{
			Backend:               a.backend,
			SkipWeekendEquitySeed: &skip,
			YearAgoFallbackDays:   fallback,
		},
		Publish: config.PublishTmp{FailPolicy: a.failPolicy},
		Metrics: config.MetricsTmp{Textfile: strings.TrimSpace(a.metricsTextfile)},
	}

	switch a.backend {
	case string(ledger.BackendWAL):
		c.Ledger.Dir = a.ledgerDir
	case string(ledger.BackendSheets):
		c.Ledger.SpreadsheetID = strings.TrimSpace(a.spreadsheetID)
	}

	for _, ch := range a.channels {
		switch ch {
		case "misskey":
			c.Publish.Misskey.Enabled = true
		case "x":
			c.Publish.Twitter.Enabled = true
		case "bluesky":
			c.Publish.Bluesky.Enabled = true
		}
	}

	if a.exchange != "" {
		c.Price = config.PriceTmp{Exchange: a.exchange, Pair: strings.ToUpper(a.pair)}
	}

	return c
}

func write(path string, c config.ConfigTmp) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateNonNegative(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

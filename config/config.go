// Package config loads the run configuration from a YAML file, an optional .env file
// and environment variables. Secrets always come from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/feed"
	"github.com/vadiminshakov/fgi/internal/services/history"
	"github.com/vadiminshakov/fgi/internal/services/posttext"
	"github.com/vadiminshakov/fgi/internal/services/publish"
	"github.com/vadiminshakov/fgi/internal/services/render"
	"github.com/vadiminshakov/fgi/internal/storage/artifacts"
	"github.com/vadiminshakov/fgi/internal/storage/ledger"
)

const (
	DefaultPath     = "config.yaml"
	DefaultEnvFile  = ".env"
	DefaultTimezone = "Asia/Tokyo"

	DefaultRunTimeout     = 5 * time.Minute
	DefaultFeedTimeout    = 30 * time.Second
	DefaultPublishTimeout = time.Minute

	ExchangeBinance = "binance"
	ExchangeBybit   = "bybit"
)

// environment variables holding secrets and endpoints
const (
	EnvRapidAPIKey        = "RAPIDAPI_KEY"
	EnvMisskeyHost        = "MISSKEY_HOST"
	EnvMisskeyToken       = "MISSKEY_TOKEN"
	EnvTwitterAPIKey      = "TWITTER_API_KEY"
	EnvTwitterAPISecret   = "TWITTER_API_SECRET"
	EnvTwitterAccessToken = "TWITTER_ACCESS_TOKEN"
	EnvTwitterAccessSec   = "TWITTER_ACCESS_SECRET"
	EnvBlueskyHandle      = "BSKY_HANDLE"
	EnvBlueskyPassword    = "BSKY_APP_PASSWORD"
	EnvDatabaseURL        = "FGI_DATABASE_URL"
	EnvGoogleCredentials  = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvBinanceAPIKey      = "BINANCE_API_KEY"
	EnvBinanceAPISecret   = "BINANCE_API_SECRET"
	EnvBybitAPIKey        = "BYBIT_API_KEY"
	EnvBybitAPISecret     = "BYBIT_API_SECRET"
)

// Config is built once per process and passed explicitly.
type Config struct {
	Locale    domain.Locale
	Timezone  string
	Location  *time.Location
	Title     string
	Hashtags  []string
	OutputDir string
	Assets    render.AssetPaths

	Equity EquityConfig
	Crypto CryptoConfig

	FeedTimeout time.Duration
	RunTimeout  time.Duration

	Ledger  ledger.Config
	History history.Config

	Publish PublishConfig
	Price   PriceConfig

	MetricsTextfile string

	LogLevel       string
	LogDevelopment bool
}

type EquityConfig struct {
	URL    string
	Host   string
	APIKey string
}

type CryptoConfig struct {
	URL   string
	Limit int
}

type PublishConfig struct {
	FailPolicy publish.FailPolicy
	Timeout    time.Duration
	AltText    string
	Misskey    MisskeyConfig
	Twitter    TwitterConfig
	Bluesky    BlueskyConfig
}

type MisskeyConfig struct {
	Enabled bool
	Host    string
	Token   string
}

type TwitterConfig struct {
	Enabled     bool
	UploadURL   string
	APIURL      string
	Credentials publish.TwitterCredentials
}

type BlueskyConfig struct {
	Enabled     bool
	PDS         string
	Handle      string
	AppPassword string
}

// PriceConfig optional spot price line. An empty exchange disables it.
type PriceConfig struct {
	Exchange  string
	Pair      domain.Pair
	APIKey    string
	APISecret string
}

// Enabled reports whether a spot price should be fetched.
func (p PriceConfig) Enabled() bool {
	return p.Exchange != ""
}

// ConfigTmp is the YAML shape of the configuration file.
type ConfigTmp struct {
	Locale    string     `yaml:"locale,omitempty"`
	Timezone  string     `yaml:"timezone,omitempty"`
	Title     string     `yaml:"title,omitempty"`
	Hashtags  []string   `yaml:"hashtags,omitempty"`
	OutputDir string     `yaml:"output_dir,omitempty"`
	Assets    AssetsTmp  `yaml:"assets,omitempty"`
	Equity    EquityTmp  `yaml:"equity,omitempty"`
	Crypto    CryptoTmp  `yaml:"crypto,omitempty"`
	Ledger    LedgerTmp  `yaml:"ledger,omitempty"`
	Publish   PublishTmp `yaml:"publish,omitempty"`
	Price     PriceTmp   `yaml:"price,omitempty"`
	Run       RunTmp     `yaml:"run,omitempty"`
	Metrics   MetricsTmp `yaml:"metrics,omitempty"`
	Log       LogTmp     `yaml:"log,omitempty"`
}

type AssetsTmp struct {
	Template    string `yaml:"template,omitempty"`
	BoldFont    string `yaml:"bold_font,omitempty"`
	RegularFont string `yaml:"regular_font,omitempty"`
}

type EquityTmp struct {
	URL     string        `yaml:"url,omitempty"`
	Host    string        `yaml:"host,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type CryptoTmp struct {
	URL      string `yaml:"url,omitempty"`
	Limit    int    `yaml:"limit,omitempty"`
	SeedDays int    `yaml:"seed_days,omitempty"`
}

type LedgerTmp struct {
	Backend               string            `yaml:"backend,omitempty"`
	Dir                   string            `yaml:"dir,omitempty"`
	SpreadsheetID         string            `yaml:"spreadsheet_id,omitempty"`
	SheetNames            map[string]string `yaml:"sheet_names,omitempty"`
	SkipWeekendEquitySeed *bool             `yaml:"skip_weekend_equity_seed,omitempty"`
	YearAgoFallbackDays   int               `yaml:"year_ago_fallback_days,omitempty"`
	EquityMarketZone      string            `yaml:"equity_market_zone,omitempty"`
}

type PublishTmp struct {
	FailPolicy string        `yaml:"fail_policy,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	AltText    string        `yaml:"alt_text,omitempty"`
	Misskey    ChannelTmp    `yaml:"misskey,omitempty"`
	Twitter    TwitterTmp    `yaml:"x,omitempty"`
	Bluesky    ChannelTmp    `yaml:"bluesky,omitempty"`
}

// ChannelTmp enables a channel. URL overrides the channel endpoint, e.g. the Bluesky PDS.
type ChannelTmp struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
}

// TwitterTmp X serves media uploads from a separate host. URL overrides the API host.
type TwitterTmp struct {
	ChannelTmp `yaml:",inline"`
	UploadURL  string `yaml:"upload_url,omitempty"`
}

type PriceTmp struct {
	Exchange string `yaml:"exchange,omitempty"`
	Pair     string `yaml:"pair,omitempty"`
}

type RunTmp struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type MetricsTmp struct {
	Textfile string `yaml:"textfile,omitempty"`
}

type LogTmp struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Load reads path (skipped when empty), then the .env file when present, then
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "failed to load .env")
	}

	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	conf, err := fromTmp(tmp, os.Getenv)
	if err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func fromTmp(c ConfigTmp, getenv func(string) string) (Config, error) {
	conf := Config{
		Locale:    domain.Locale(strings.ToLower(valueOr(c.Locale, string(domain.LocaleJA)))),
		Timezone:  valueOr(c.Timezone, DefaultTimezone),
		Title:     valueOr(c.Title, posttext.DefaultTitle),
		Hashtags:  c.Hashtags,
		OutputDir: valueOr(c.OutputDir, artifacts.DefaultDir),
		Assets: render.AssetPaths{
			Template:    valueOr(c.Assets.Template, render.DefaultTemplatePath),
			BoldFont:    valueOr(c.Assets.BoldFont, render.DefaultBoldFont),
			RegularFont: valueOr(c.Assets.RegularFont, render.DefaultRegularFont),
		},
		Equity: EquityConfig{
			URL:    valueOr(c.Equity.URL, feed.DefaultEquityURL),
			Host:   valueOr(c.Equity.Host, feed.DefaultEquityHost),
			APIKey: getenv(EnvRapidAPIKey),
		},
		Crypto: CryptoConfig{
			URL:   valueOr(c.Crypto.URL, feed.DefaultCryptoURL),
			Limit: intOr(c.Crypto.Limit, feed.DefaultCryptoLimit),
		},
		FeedTimeout: durationOr(c.Equity.Timeout, DefaultFeedTimeout),
		RunTimeout:  durationOr(c.Run.Timeout, DefaultRunTimeout),
		Ledger: ledger.Config{
			Backend:         ledger.Backend(strings.ToLower(valueOr(c.Ledger.Backend, string(ledger.BackendWAL)))),
			Dir:             valueOr(c.Ledger.Dir, ledger.DefaultDir),
			SpreadsheetID:   c.Ledger.SpreadsheetID,
			CredentialsFile: getenv(EnvGoogleCredentials),
			SheetNames:      sheetNames(c.Ledger.SheetNames),
			DatabaseURL:     getenv(EnvDatabaseURL),
		},
		History: history.Config{
			SkipWeekendEquitySeed: c.Ledger.SkipWeekendEquitySeed == nil || *c.Ledger.SkipWeekendEquitySeed,
			CryptoSeedDays:        intOr(c.Crypto.SeedDays, history.DefaultCryptoSeedDays),
			YearAgoFallbackDays:   c.Ledger.YearAgoFallbackDays,
		},
		Publish: PublishConfig{
			FailPolicy: publish.FailPolicy(strings.ToLower(valueOr(c.Publish.FailPolicy, string(publish.FailAll)))),
			Timeout:    durationOr(c.Publish.Timeout, DefaultPublishTimeout),
			AltText:    valueOr(c.Publish.AltText, publish.DefaultAltText),
			Misskey: MisskeyConfig{
				Enabled: c.Publish.Misskey.Enabled,
				Host:    valueOr(getenv(EnvMisskeyHost), c.Publish.Misskey.URL),
				Token:   getenv(EnvMisskeyToken),
			},
			Twitter: TwitterConfig{
				Enabled:   c.Publish.Twitter.Enabled,
				APIURL:    c.Publish.Twitter.URL,
				UploadURL: c.Publish.Twitter.UploadURL,
				Credentials: publish.TwitterCredentials{
					APIKey:       getenv(EnvTwitterAPIKey),
					APISecret:    getenv(EnvTwitterAPISecret),
					AccessToken:  getenv(EnvTwitterAccessToken),
					AccessSecret: getenv(EnvTwitterAccessSec),
				},
			},
			Bluesky: BlueskyConfig{
				Enabled:     c.Publish.Bluesky.Enabled,
				PDS:         valueOr(c.Publish.Bluesky.URL, publish.DefaultBlueskyPDS),
				Handle:      getenv(EnvBlueskyHandle),
				AppPassword: getenv(EnvBlueskyPassword),
			},
		},
		MetricsTextfile: c.Metrics.Textfile,
		LogLevel:        valueOr(c.Log.Level, "info"),
		LogDevelopment:  c.Log.Development,
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'timezone' param in yaml config: %s", conf.Timezone)
	}
	conf.Location = loc

	marketZone := valueOr(c.Ledger.EquityMarketZone, history.DefaultMarketZone)
	conf.History.MarketLocation, err = time.LoadLocation(marketZone)
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'ledger.equity_market_zone' param in yaml config: %s", marketZone)
	}

	if c.Price.Exchange != "" {
		pair, err := domain.ParsePair(valueOr(c.Price.Pair, "BTC_USDT"))
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect 'price.pair' param in yaml config: %s", c.Price.Pair)
		}
		conf.Price = PriceConfig{Exchange: strings.ToLower(c.Price.Exchange), Pair: pair}
		switch conf.Price.Exchange {
		case ExchangeBinance:
			conf.Price.APIKey, conf.Price.APISecret = getenv(EnvBinanceAPIKey), getenv(EnvBinanceAPISecret)
		case ExchangeBybit:
			conf.Price.APIKey, conf.Price.APISecret = getenv(EnvBybitAPIKey), getenv(EnvBybitAPISecret)
		}
	}

	return conf, nil
}

// Validate rejects configurations that cannot produce a run.
func (c Config) Validate() error {
	if !c.Locale.IsValid() {
		return fmt.Errorf("unsupported locale %q, expected ja or en", c.Locale)
	}
	if c.Equity.APIKey == "" {
		return fmt.Errorf("%s environment variable must be set", EnvRapidAPIKey)
	}
	if c.Crypto.Limit < 2 {
		return fmt.Errorf("crypto.limit must be at least 2, got %d", c.Crypto.Limit)
	}
	if c.History.CryptoSeedDays < 1 || c.History.CryptoSeedDays > c.Crypto.Limit {
		return fmt.Errorf("crypto.seed_days must be between 1 and crypto.limit (%d), got %d", c.Crypto.Limit, c.History.CryptoSeedDays)
	}
	if c.History.YearAgoFallbackDays < 0 {
		return fmt.Errorf("ledger.year_ago_fallback_days must not be negative")
	}
	if c.RunTimeout <= 0 || c.FeedTimeout <= 0 || c.Publish.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}

	switch c.Price.Exchange {
	case "", ExchangeBinance, ExchangeBybit:
	default:
		return fmt.Errorf("unsupported price exchange %q, expected binance or bybit", c.Price.Exchange)
	}

	return nil
}

func (c Config) validateLedger() error {
	switch c.Ledger.Backend {
	case ledger.BackendWAL:
		if c.Ledger.Dir == "" {
			return fmt.Errorf("ledger.dir must be set for the wal backend")
		}
	case ledger.BackendSheets:
		if c.Ledger.SpreadsheetID == "" {
			return fmt.Errorf("ledger.spreadsheet_id must be set for the sheets backend")
		}
		if c.Ledger.CredentialsFile == "" && c.Ledger.SheetsEndpoint == "" {
			return fmt.Errorf("%s environment variable must be set for the sheets backend", EnvGoogleCredentials)
		}
	case ledger.BackendPostgres:
		if c.Ledger.DatabaseURL == "" {
			return fmt.Errorf("%s environment variable must be set for the postgres backend", EnvDatabaseURL)
		}
	case ledger.BackendMemory:
	default:
		return fmt.Errorf("unsupported ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

func (c Config) validatePublish() error {
	if !c.Publish.FailPolicy.IsValid() {
		return fmt.Errorf("unsupported publish.fail_policy %q, expected all, any or never", c.Publish.FailPolicy)
	}

	p := c.Publish
	if p.Misskey.Enabled && (p.Misskey.Host == "" || p.Misskey.Token == "") {
		return fmt.Errorf("misskey is enabled but %s and %s are not set", EnvMisskeyHost, EnvMisskeyToken)
	}
	if p.Twitter.Enabled {
		cr := p.Twitter.Credentials
		if cr.APIKey == "" || cr.APISecret == "" || cr.AccessToken == "" || cr.AccessSecret == "" {
			return fmt.Errorf("x is enabled but its TWITTER_* credentials are incomplete")
		}
	}
	if p.Bluesky.Enabled && (p.Bluesky.Handle == "" || p.Bluesky.AppPassword == "") {
		return fmt.Errorf("bluesky is enabled but %s and %s are not set", EnvBlueskyHandle, EnvBlueskyPassword)
	}
	return nil
}

func sheetNames(names map[string]string) map[domain.Instrument]string {
	out := make(map[domain.Instrument]string, len(ledger.DefaultSheetNames))
	for k, v := range ledger.DefaultSheetNames {
		out[k] = v
	}
	for k, v := range names {
		if inst := domain.Instrument(strings.ToLower(k)); inst.IsValid() && v != "" {
			out[inst] = v
		}
	}
	return out
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"BandSentinel/internal/indicator"
	"BandSentinel/internal/strategy"
)

// Instrument is one watchlist entry. Name is used when Code is empty.
type Instrument struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
		Commands bool   `yaml:"commands"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider          string        `yaml:"provider"`
		Proxy             string        `yaml:"proxy"`
		Suffix            string        `yaml:"suffix"`
		ListingURL        string        `yaml:"listing_url"`
		RequestsPerSecond int           `yaml:"requests_per_second"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Schedule struct {
		UpdateCron   string `yaml:"update_cron"`
		EvaluateCron string `yaml:"evaluate_cron"`
	} `yaml:"schedule"`
	Analysis struct {
		LookbackDays int      `yaml:"lookback_days"`
		Workers      int      `yaml:"workers"`
		Profiles     []string `yaml:"profiles"`
	} `yaml:"analysis"`
	Watchlist  []Instrument       `yaml:"watchlist"`
	Strategies []strategy.Profile `yaml:"strategies"`
	Metrics    struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads .env if present, then the YAML file, then applies environment
// variable overrides and defaults. A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.DataSource.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("CRON_UPDATE"); v != "" {
		c.Schedule.UpdateCron = v
	}
	if v := os.Getenv("CRON_EVALUATE"); v != "" {
		c.Schedule.EvaluateCron = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.Suffix == "" {
		c.DataSource.Suffix = ".KS"
	}
	if c.DataSource.RequestsPerSecond == 0 {
		c.DataSource.RequestsPerSecond = 2
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/band_sentinel.db"
	}
	// seconds field first, as robfig/cron is built WithSeconds
	if c.Schedule.UpdateCron == "" {
		c.Schedule.UpdateCron = "0 30 16 * * 1-5"
	}
	if c.Schedule.EvaluateCron == "" {
		c.Schedule.EvaluateCron = "0 0 17 * * 1-5"
	}
	if c.Analysis.LookbackDays == 0 {
		c.Analysis.LookbackDays = 400
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = 4
	}
	if len(c.Analysis.Profiles) == 0 {
		c.Analysis.Profiles = []string{strategy.Trend, strategy.Reversal, strategy.TripleScreen}
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9108"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set and every profile is usable.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.DataSource.Provider != "yahoo" {
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.RequestsPerSecond < 0 {
		return fmt.Errorf("data_source.requests_per_second must not be negative")
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be positive")
	}
	if c.Analysis.LookbackDays < 1 {
		return fmt.Errorf("analysis.lookback_days must be positive")
	}
	for i, w := range c.Watchlist {
		if strings.TrimSpace(w.Code) == "" && strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("watchlist[%d]: code or name is required", i)
		}
	}

	profiles, err := c.Profiles()
	if err != nil {
		return err
	}
	for _, name := range c.Analysis.Profiles {
		if _, ok := profiles[name]; !ok {
			return fmt.Errorf("analysis.profiles: unknown profile %q", name)
		}
	}
	return nil
}

// Profiles returns the built-in profiles with the configured strategies laid
// over them. A strategy named after a built-in overrides only the fields it
// sets; any other name adds a new profile.
func (c *Config) Profiles() (map[string]strategy.Profile, error) {
	out := strategy.Builtins()
	for _, s := range c.Strategies {
		p := merge(out[s.Name], s)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[p.Name] = p
	}
	return out, nil
}

// Active returns the profiles listed in analysis.profiles, in order.
func (c *Config) Active() ([]strategy.Profile, error) {
	all, err := c.Profiles()
	if err != nil {
		return nil, err
	}
	out := make([]strategy.Profile, 0, len(c.Analysis.Profiles))
	for _, name := range c.Analysis.Profiles {
		p, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

func merge(base, over strategy.Profile) strategy.Profile {
	base.Name = over.Name
	if len(over.Indicators) > 0 {
		base.Indicators = over.Indicators
	}
	if over.Rule != "" {
		base.Rule = over.Rule
	}
	if over.MinPeriods != "" {
		base.MinPeriods = over.MinPeriods
	}
	if over.Buy != nil {
		base.Buy = over.Buy
	}
	if over.Sell != nil {
		base.Sell = over.Sell
	}
	base.Crossover = mergeCrossover(base.Crossover, over.Crossover)
	base.Params = mergeParams(base.Params, over.Params)
	return base
}

func mergeCrossover(base, over strategy.Crossover) strategy.Crossover {
	if over.Trend != "" {
		base.Trend = over.Trend
	}
	if over.Oscillator != "" {
		base.Oscillator = over.Oscillator
	}
	if over.Lower != 0 {
		base.Lower = over.Lower
	}
	if over.Upper != 0 {
		base.Upper = over.Upper
	}
	return base
}

func mergeParams(base, over indicator.Params) indicator.Params {
	if over.BBWindow != 0 {
		base.BBWindow = over.BBWindow
	}
	if over.BBK != 0 {
		base.BBK = over.BBK
	}
	if over.MFIWindow != 0 {
		base.MFIWindow = over.MFIWindow
	}
	if over.IIWindow != 0 {
		base.IIWindow = over.IIWindow
	}
	if over.EMAFast != 0 {
		base.EMAFast = over.EMAFast
	}
	if over.EMASlow != 0 {
		base.EMASlow = over.EMASlow
	}
	if over.SignalSpan != 0 {
		base.SignalSpan = over.SignalSpan
	}
	if over.StochWindow != 0 {
		base.StochWindow = over.StochWindow
	}
	if over.StochSmooth != 0 {
		base.StochSmooth = over.StochSmooth
	}
	return base.WithDefaults()
}

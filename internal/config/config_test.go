package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"BandSentinel/internal/calculator"
	"BandSentinel/internal/strategy"
)

const sample = `
telegram:
  bot_token: "123:abc"
  chat_id: 42
data_source:
  timeout: 10s
database:
  driver: sqlite
  dsn: /tmp/bs.db
analysis:
  profiles: [trend, triple-screen, fast-trend]
watchlist:
  - code: "005930"
    name: Samsung Electronics
  - name: NAVER
strategies:
  - name: triple-screen
    crossover:
      trend: ema130
      oscillator: pd
      lower: 10
      upper: 90
  - name: fast-trend
    indicators: [pb, mfi]
    rule: threshold
    min_periods: partial
    params:
      bb_window: 10
    buy:
      - {indicator: pb, op: gt, value: 0.9}
    sell:
      - {indicator: pb, op: lt, value: 0.1}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Errorf("chat id = %d", cfg.Telegram.ChatID)
	}
	if cfg.DataSource.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.DataSource.Timeout)
	}
	if cfg.DataSource.Provider != "yahoo" || cfg.DataSource.Suffix != ".KS" {
		t.Errorf("data source defaults = %+v", cfg.DataSource)
	}
	if cfg.Analysis.Workers != 4 || cfg.Analysis.LookbackDays != 400 {
		t.Errorf("analysis defaults = %+v", cfg.Analysis)
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[1].Name != "NAVER" {
		t.Errorf("watchlist = %+v", cfg.Watchlist)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN == "" {
		t.Errorf("database defaults = %+v", cfg.Database)
	}
	if len(cfg.Analysis.Profiles) != 3 {
		t.Errorf("profiles = %v", cfg.Analysis.Profiles)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without telegram credentials")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/bands?sslmode=disable")
	t.Setenv("CRON_EVALUATE", "0 15 18 * * 1-5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "env-token" || cfg.Telegram.ChatID != -100200 {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/bands?sslmode=disable" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Schedule.EvaluateCron != "0 15 18 * * 1-5" || cfg.Log.Level != "debug" {
		t.Errorf("schedule/log not overridden: %+v %+v", cfg.Schedule, cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_BadChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	if _, err := Load(writeConfig(t, sample)); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
}

func TestProfiles_Merge(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	active, err := cfg.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("active = %d profiles, want 3", len(active))
	}

	ts := active[1]
	if ts.Name != strategy.TripleScreen || ts.Crossover.Lower != 10 || ts.Crossover.Upper != 90 {
		t.Errorf("triple-screen override not applied: %+v", ts.Crossover)
	}
	if ts.Rule != strategy.RuleCrossover || ts.MinPeriods != calculator.Partial {
		t.Errorf("triple-screen lost built-in fields: rule=%q policy=%q", ts.Rule, ts.MinPeriods)
	}

	fast := active[2]
	if fast.Params.BBWindow != 10 || fast.Params.MFIWindow != 10 || fast.Params.EMASlow != 130 {
		t.Errorf("fast-trend params = %+v", fast.Params)
	}
	if len(fast.Buy) != 1 || fast.Buy[0].Op != strategy.OpGT {
		t.Errorf("fast-trend buy = %+v", fast.Buy)
	}
}

func TestProfiles_MergeCrossoverFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
analysis:
  profiles: [triple-screen]
strategies:
  - name: triple-screen
    crossover:
      lower: 30
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	active, err := cfg.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	want := strategy.TripleScreenProfile().Crossover
	want.Lower = 30
	if got := active[0].Crossover; got != want {
		t.Errorf("crossover = %+v, want %+v", got, want)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"provider", func(c *Config) { c.DataSource.Provider = "naver" }},
		{"workers", func(c *Config) { c.Analysis.Workers = -1 }},
		{"unknown profile", func(c *Config) { c.Analysis.Profiles = []string{"momentum"} }},
		{"empty watchlist entry", func(c *Config) { c.Watchlist = append(c.Watchlist, Instrument{}) }},
		{"broken strategy", func(c *Config) {
			c.Strategies = append(c.Strategies, strategy.Profile{Name: "broken", Rule: "magic"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sample))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

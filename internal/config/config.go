package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"AShareLens/internal/calculator"
	"AShareLens/internal/model"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	Indicator struct {
		Fast            int     `yaml:"fast"`
		Slow            int     `yaml:"slow"`
		Signal          int     `yaml:"signal"`
		Seed            string  `yaml:"seed"`
		HistogramScale  float64 `yaml:"histogram_scale"`
		MAPeriods       []int   `yaml:"ma_periods"`
		WeeklyMAPeriods []int   `yaml:"weekly_ma_periods"`
	} `yaml:"indicator"`
	DataSource struct {
		Provider     string `yaml:"provider"`
		CSVDir       string `yaml:"csv_dir"`
		Adjust       string `yaml:"adjust"`
		LookbackDays int    `yaml:"lookback_days"`
		RequestGapMs int    `yaml:"request_gap_ms"`
		MaxRetries   int    `yaml:"max_retries"`
	} `yaml:"data_source"`
	Cache struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"cache"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		DailyCron  string `yaml:"daily_cron"`
		WeeklyCron string `yaml:"weekly_cron"`
		Watchlist  string `yaml:"watchlist"`
		Workers    int    `yaml:"workers"`
	} `yaml:"schedule"`
	Watchlists map[string][]string `yaml:"watchlists"`
	Metrics    struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Providers are the supported data_source.provider values.
var Providers = []string{"eastmoney", "yahoo", "csv", "mock"}

// LoadEnv loads .env files into the environment. Missing files are ignored.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...) // best-effort
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
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

	// Environment variable overrides
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_ADJUST"); v != "" {
		cfg.DataSource.Adjust = v
	}
	if v := os.Getenv("CSV_DIR"); v != "" {
		cfg.DataSource.CSVDir = v
	}
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSource.LookbackDays = n
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("CRON_WEEKLY"); v != "" {
		cfg.Schedule.WeeklyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Cache.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Indicator.Fast == 0 {
		c.Indicator.Fast = 12
	}
	if c.Indicator.Slow == 0 {
		c.Indicator.Slow = 26
	}
	if c.Indicator.Signal == 0 {
		c.Indicator.Signal = 9
	}
	if c.Indicator.Seed == "" {
		c.Indicator.Seed = calculator.SeedFirstValue.String()
	}
	if c.Indicator.HistogramScale == 0 {
		c.Indicator.HistogramScale = 1
	}
	if len(c.Indicator.MAPeriods) == 0 {
		c.Indicator.MAPeriods = append([]int(nil), calculator.DefaultMAPeriods...)
	}
	if len(c.Indicator.WeeklyMAPeriods) == 0 {
		c.Indicator.WeeklyMAPeriods = append([]int(nil), calculator.DefaultWeeklyMAPeriods...)
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "eastmoney"
	}
	if c.DataSource.CSVDir == "" {
		c.DataSource.CSVDir = "data/csv"
	}
	if c.DataSource.LookbackDays == 0 {
		c.DataSource.LookbackDays = 600
	}
	if c.DataSource.RequestGapMs == 0 {
		c.DataSource.RequestGapMs = 200
	}
	if c.DataSource.MaxRetries == 0 {
		c.DataSource.MaxRetries = 3
	}
	// after the 15:00 close, Shanghai time
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 30 15 * * 1-5"
	}
	if c.Schedule.WeeklyCron == "" {
		c.Schedule.WeeklyCron = "0 0 18 * * 5"
	}
	if c.Schedule.Watchlist == "" {
		c.Schedule.Watchlist = "default"
	}
	if c.Schedule.Workers == 0 {
		c.Schedule.Workers = 4
	}
}

// Validate checks indicator and data source settings.
func (c *Config) Validate() error {
	if _, err := c.MACD(); err != nil {
		return err
	}
	for _, p := range append(append([]int(nil), c.Indicator.MAPeriods...), c.Indicator.WeeklyMAPeriods...) {
		if p <= 0 {
			return fmt.Errorf("indicator: ma period %d must be positive", p)
		}
	}
	if !contains(Providers, c.DataSource.Provider) {
		return fmt.Errorf("data_source.provider must be one of %s, got %q", strings.Join(Providers, ", "), c.DataSource.Provider)
	}
	if _, err := c.Adjust(); err != nil {
		return fmt.Errorf("data_source.adjust: %w", err)
	}
	if c.DataSource.LookbackDays < 0 {
		return fmt.Errorf("data_source.lookback_days must not be negative")
	}
	if c.Schedule.Workers < 0 {
		return fmt.Errorf("schedule.workers must not be negative")
	}
	return nil
}

// ValidateTelegram checks the settings the chat bot needs.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// MACD converts the indicator section to an engine configuration.
func (c *Config) MACD() (calculator.MACDConfig, error) {
	seed, err := calculator.ParseSeeding(c.Indicator.Seed)
	if err != nil {
		return calculator.MACDConfig{}, err
	}
	cfg := calculator.MACDConfig{
		Fast:           c.Indicator.Fast,
		Slow:           c.Indicator.Slow,
		Signal:         c.Indicator.Signal,
		Seed:           seed,
		HistogramScale: c.Indicator.HistogramScale,
	}
	if err := cfg.Validate(); err != nil {
		return calculator.MACDConfig{}, err
	}
	return cfg, nil
}

// Adjust parses data_source.adjust.
func (c *Config) Adjust() (model.Adjust, error) {
	return model.ParseAdjust(c.DataSource.Adjust)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

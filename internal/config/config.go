package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // schedule.timezone must resolve on hosts without zoneinfo

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"goldwatch/internal/logging"
	"goldwatch/internal/schedule"
)

// Price source kinds.
const (
	SourceScrape = "scrape"
	SourceJSON   = "json"
)

// Storage drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	History  HistoryConfig  `mapstructure:"history"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
	Source   SourceConfig   `mapstructure:"source"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Storage  StorageConfig  `mapstructure:"storage"`
	API      APIConfig      `mapstructure:"api"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ScheduleConfig describes the weekly operating window.
type ScheduleConfig struct {
	Timezone      string   `mapstructure:"timezone"`
	ClosedDays    []string `mapstructure:"closed_days"`
	ReopenWeekday string   `mapstructure:"reopen_weekday"`
	ReopenHour    int      `mapstructure:"reopen_hour"`
	ReopenMinute  int      `mapstructure:"reopen_minute"`
	OpenMessage   string   `mapstructure:"open_message"`
	ClosedMessage string   `mapstructure:"closed_message"`
}

// HistoryConfig bounds the in-memory window.
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// SamplerConfig governs sampling cadence.
type SamplerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	SkipWhenClosed  bool          `mapstructure:"skip_when_closed"`
}

// SourceConfig configures where prices are read from. Kind "scrape" applies
// Pattern to an HTML page; kind "json" reads Field from a JSON document.
type SourceConfig struct {
	Kind        string        `mapstructure:"kind"`
	URL         string        `mapstructure:"url"`
	Pattern     string        `mapstructure:"pattern"`
	Field       string        `mapstructure:"field"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// AlertingConfig defines alert behaviour and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	FireOnce bool           `mapstructure:"fire_once"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects and configures persistence.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig points at the local database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// APIConfig toggles the HTTP surface.
type APIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GOLDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goldwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("schedule.timezone", "Asia/Jakarta")
	v.SetDefault("schedule.closed_days", []string{"saturday", "sunday"})
	v.SetDefault("schedule.reopen_weekday", "monday")
	v.SetDefault("schedule.reopen_hour", 0)
	v.SetDefault("schedule.reopen_minute", 0)
	v.SetDefault("schedule.open_message", schedule.DefaultOpenMessage)
	v.SetDefault("schedule.closed_message", schedule.DefaultClosedMessage)

	v.SetDefault("history.capacity", 100)

	v.SetDefault("sampler.interval", "1m")
	v.SetDefault("sampler.align_to_bucket", true)
	v.SetDefault("sampler.advisory_lock_key", int64(0x676f6c64))
	v.SetDefault("sampler.startup_delay", "0s")
	v.SetDefault("sampler.skip_when_closed", true)

	v.SetDefault("source.kind", SourceScrape)
	v.SetDefault("source.url", "https://www.hargaemas.com/")
	v.SetDefault("source.pattern", `2\.9[0-9]{2}\.[0-9]{3}`)
	v.SetDefault("source.timeout", "5s")
	v.SetDefault("source.user_agent", "Mozilla/5.0")
	v.SetDefault("source.min_interval", "10s")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.fire_once", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"websocket"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite.path", "riwayat_emas.db")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.max_idle_conns", 2)
	v.SetDefault("storage.postgres.conn_max_lifetime", "30m")
	v.SetDefault("storage.postgres.auto_migrate", true)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", ":8000")
	v.SetDefault("api.shutdown_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be greater than zero")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if _, err := c.Rule(); err != nil {
		return err
	}
	switch strings.ToLower(c.Source.Kind) {
	case "", SourceScrape:
		if c.Source.Pattern != "" {
			if _, err := regexp.Compile(c.Source.Pattern); err != nil {
				return fmt.Errorf("source.pattern: %w", err)
			}
		}
	case SourceJSON:
		if c.Source.Field == "" {
			return fmt.Errorf("source.field is required for the json source")
		}
	default:
		return fmt.Errorf("source.kind %q is not one of scrape, json", c.Source.Kind)
	}

	switch strings.ToLower(c.Storage.Driver) {
	case DriverNone, DriverSQLite:
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of none, sqlite, postgres", c.Storage.Driver)
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Rule translates the schedule section into a gate rule.
func (c *Config) Rule() (schedule.Rule, error) {
	sc := c.Schedule
	rule := schedule.Rule{
		ReopenHour:    sc.ReopenHour,
		ReopenMinute:  sc.ReopenMinute,
		OpenMessage:   sc.OpenMessage,
		ClosedMessage: sc.ClosedMessage,
	}

	tz := sc.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return schedule.Rule{}, fmt.Errorf("schedule.timezone %q: %w", tz, err)
	}
	rule.Location = loc

	for _, name := range sc.ClosedDays {
		if strings.TrimSpace(name) == "" {
			continue
		}
		day, err := schedule.ParseWeekday(name)
		if err != nil {
			return schedule.Rule{}, fmt.Errorf("schedule.closed_days: %w", err)
		}
		rule.ClosedDays = append(rule.ClosedDays, day)
	}

	reopen := sc.ReopenWeekday
	if reopen == "" {
		reopen = "monday"
	}
	if rule.ReopenWeekday, err = schedule.ParseWeekday(reopen); err != nil {
		return schedule.Rule{}, fmt.Errorf("schedule.reopen_weekday: %w", err)
	}
	if sc.ReopenHour < 0 || sc.ReopenHour > 23 {
		return schedule.Rule{}, fmt.Errorf("schedule.reopen_hour must be within 0-23")
	}
	if sc.ReopenMinute < 0 || sc.ReopenMinute > 59 {
		return schedule.Rule{}, fmt.Errorf("schedule.reopen_minute must be within 0-59")
	}

	return rule, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookcal/internal/drag"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when BOOKCAL_CONFIG_PATH is empty.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Slots      SlotsConfig      `yaml:"slots"`
	Calendar   drag.Layout      `yaml:"calendar"`
	Waitlist   WaitlistConfig   `yaml:"waitlist"`
	Schedules  SchedulesSource  `yaml:"schedules"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
	// RatePerSecond paces outgoing messages.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"path"`
	RetentionDays int           `yaml:"retention_days"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type APIConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	MaxRangeDays   int           `yaml:"max_range_days"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type SlotsConfig struct {
	IntervalMinutes   int `yaml:"interval_minutes"`
	MinAdvanceMinutes int `yaml:"min_advance_minutes"`
}

type WaitlistConfig struct {
	// ClaimTTL bounds how long a Redis claim blocks other matcher runs.
	ClaimTTL time.Duration `yaml:"claim_ttl"`
	// FirstComeFirstServed sorts waiting entries by registration time before matching.
	FirstComeFirstServed bool `yaml:"first_come_first_served"`
}

type SchedulesSource struct {
	Path          string        `yaml:"path"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{Calendar: drag.DefaultLayout()}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/bookcal.db"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Backup.Interval <= 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.Telegram.RatePerSecond <= 0 {
		c.Telegram.RatePerSecond = 25
	}
	if c.Telegram.Burst <= 0 {
		c.Telegram.Burst = 5
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = 10 * time.Second
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 20
	}
	if c.API.RateBurst <= 0 {
		c.API.RateBurst = 40
	}
	if c.API.MaxRangeDays <= 0 {
		c.API.MaxRangeDays = 90
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Slots.IntervalMinutes <= 0 {
		c.Slots.IntervalMinutes = 15
	}
	if c.Calendar.SnapInterval <= 0 {
		c.Calendar.SnapInterval = 15
	}
	if c.Waitlist.ClaimTTL <= 0 {
		c.Waitlist.ClaimTTL = 10 * time.Minute
	}
	if c.Schedules.Path == "" {
		c.Schedules.Path = "configs/schedules.yaml"
	}
	if c.Schedules.WatchInterval <= 0 {
		c.Schedules.WatchInterval = 30 * time.Second
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Slots.MinAdvanceMinutes < 0 {
		return fmt.Errorf("slots.min_advance_minutes cannot be negative")
	}
	if c.Calendar.PixelsPerHour <= 0 {
		return fmt.Errorf("calendar.pixels_per_hour must be positive")
	}
	if c.Calendar.StartHour < 0 || c.Calendar.EndHour > 24 || c.Calendar.StartHour >= c.Calendar.EndHour {
		return fmt.Errorf("calendar: need 0 <= start_hour < end_hour <= 24, got %d..%d", c.Calendar.StartHour, c.Calendar.EndHour)
	}
	if c.Calendar.SidebarWidth < 0 {
		return fmt.Errorf("calendar.sidebar_width cannot be negative")
	}
	return nil
}

// MinAdvance is the lead time before the earliest bookable slot today.
func (c *Config) MinAdvance() time.Duration {
	return time.Duration(c.Slots.MinAdvanceMinutes) * time.Minute
}

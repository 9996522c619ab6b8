package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"agendafacil/internal/model"
)

type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	HTTP struct {
		Address         string  `yaml:"address"`
		ManagerAPIKey   string  `yaml:"manager_api_key"`
		RequestsPerSec  float64 `yaml:"requests_per_second"`
		Burst           int     `yaml:"burst"`
		ShutdownTimeout int     `yaml:"shutdown_timeout_seconds"`
	} `yaml:"http"`

	Database struct {
		Driver   string `yaml:"driver"` // sqlite, postgres or memory
		Path     string `yaml:"path"`
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		PendingBlocksSlot      *bool  `yaml:"pending_blocks_slot"`
		InitialStatus          string `yaml:"initial_status"`
		DefaultDurationMinutes int    `yaml:"default_duration_minutes"`
		RateLimit              struct {
			MaxBookings   int `yaml:"max_bookings"`
			WindowMinutes int `yaml:"window_minutes"`
		} `yaml:"rate_limit"`
	} `yaml:"booking"`

	Businesses struct {
		File                 string `yaml:"file"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"businesses"`
}

// BackupConfig controls periodic SQLite snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval defaults to one snapshot a day.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" {
		if cfg.Database.Path == "" {
			cfg.Database.Path = "data/agendafacil.db"
		}
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Booking.InitialStatus != "" {
		if _, err := c.InitialStatus(); err != nil {
			return fmt.Errorf("booking.initial_status: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	return nil
}

// Location returns the business timezone, America/Sao_Paulo by default.
func (c *Config) Location() (*time.Location, error) {
	tz := c.App.Timezone
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	return time.LoadLocation(tz)
}

// PendingBlocksSlot defaults to true.
func (c *Config) PendingBlocksSlot() bool {
	if c.Booking.PendingBlocksSlot == nil {
		return true
	}
	return *c.Booking.PendingBlocksSlot
}

// InitialStatus returns the status of new bookings, confirmed by default.
func (c *Config) InitialStatus() (model.Status, error) {
	if c.Booking.InitialStatus == "" {
		return model.StatusConfirmed, nil
	}
	st, err := model.NormalizeStatus(c.Booking.InitialStatus)
	if err != nil {
		return "", err
	}
	if st != model.StatusPending && st != model.StatusConfirmed {
		return "", fmt.Errorf("must be pending or confirmed, got %s", st)
	}
	return st, nil
}

func (c *Config) DefaultDuration() time.Duration {
	if c.Booking.DefaultDurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Booking.DefaultDurationMinutes) * time.Minute
}

func (c *Config) RateLimitMax() int {
	if c.Booking.RateLimit.MaxBookings <= 0 {
		return 3
	}
	return c.Booking.RateLimit.MaxBookings
}

func (c *Config) RateLimitWindow() time.Duration {
	if c.Booking.RateLimit.WindowMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Booking.RateLimit.WindowMinutes) * time.Minute
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) HTTPAddress() string {
	if c.HTTP.Address == "" {
		return ":8080"
	}
	return c.HTTP.Address
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.HTTP.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTP.ShutdownTimeout) * time.Second
}

func (c *Config) BusinessesFile() string {
	if c.Businesses.File == "" {
		return "configs/businesses.yaml"
	}
	return c.Businesses.File
}

func (c *Config) BusinessesWatchInterval() time.Duration {
	if c.Businesses.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Businesses.WatchIntervalSeconds) * time.Second
}

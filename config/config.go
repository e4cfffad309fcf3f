package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	Timezone string `env:"TIMEZONE"  envDefault:"Local" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	StoreDriver   string `env:"STORE_DRIVER"   envDefault:"file"                   validate:"oneof=file postgres sqlite"`
	SchedulesFile string `env:"SCHEDULES_FILE" envDefault:"./data/schedules.json"  validate:"required_if=StoreDriver file"`
	DatabaseURL   string `env:"DATABASE_URL"                                       validate:"required_if=StoreDriver postgres"`
	SQLitePath    string `env:"SQLITE_PATH"    envDefault:"./data/schedules.db"    validate:"required_if=StoreDriver sqlite"`

	PlaylistsDir    string `env:"PLAYLISTS_DIR"`
	DefaultPlaylist string `env:"DEFAULT_PLAYLIST"`

	DriverEnabled      bool `env:"DRIVER_ENABLED"       envDefault:"true"`
	TickIntervalSec    int  `env:"TICK_INTERVAL_SEC"    envDefault:"5"    validate:"min=1,max=300"`
	RefreshIntervalSec int  `env:"REFRESH_INTERVAL_SEC" envDefault:"60"   validate:"min=10,max=3600"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL" validate:"omitempty,url"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID"  envDefault:"signage-scheduler"`
	MQTTTopic     string `env:"MQTT_TOPIC"      envDefault:"signage/player/commands" validate:"required_with=MQTTBrokerURL"`

	PlayerWebhookURL string `env:"PLAYER_WEBHOOK_URL" validate:"omitempty,url"`
	PlayerTimeoutSec int    `env:"PLAYER_TIMEOUT_SEC" envDefault:"5" validate:"min=1,max=60"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisUsername string `env:"REDIS_USERNAME"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret    string `env:"JWT_SECRET"     validate:"omitempty,min=32"`
	CORSAllowAll bool   `env:"CORS_ALLOW_ALL" envDefault:"true"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Location resolves TIMEZONE. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

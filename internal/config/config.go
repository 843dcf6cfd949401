package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all ChatOwl configuration, read from environment variables.
type Config struct {
	Mode string `env:"CHATOWL_MODE" envDefault:"api"`

	// Server
	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"APP_PORT" envDefault:"8080"`

	// PublicBaseURL is the externally reachable address of this service. It
	// is used to build share links and fallback avatar URLs.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost:5432/chatowl?sslmode=disable"`

	// Redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Admin token guarding the admin settings endpoint.
	AdminToken string `env:"CHATOWL_ADMIN_TOKEN"`

	// CalendarEventsChannel is the Redis pub/sub channel the worker mode
	// subscribes to for groupware calendar events.
	CalendarEventsChannel string `env:"CALENDAR_EVENTS_CHANNEL" envDefault:"chatowl:calendar:events"`

	// Dev mode enables the X-Debug-User authentication fallback.
	DevMode bool `env:"DEV_MODE" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

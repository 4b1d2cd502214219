// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	Environment  string
	DatabaseURL  string
	ListenAddr   string
	KafkaBrokers []string
	LogLevel     string
}

// Load reads configuration from environment variables. DATABASE_URL is
// either a postgres:// URL or a sqlite file path; KAFKA_BROKERS is
// optional and comma-separated.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: envOr("APP_ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ListenAddr:  envOr("LISTEN_ADDR", ":3456"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var missing []string

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("LOG_LEVEL must be one of debug, info, warn, error")
	}

	// Production runs on postgres; the sqlite store is for development
	// and tests only.
	if c.Environment == "production" && !c.UsesPostgres() {
		return errors.New("DATABASE_URL must be a postgres:// URL in production")
	}
	return nil
}

// UsesPostgres reports whether DATABASE_URL points at postgres.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// SlogLevel maps the configured level onto slog.
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

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

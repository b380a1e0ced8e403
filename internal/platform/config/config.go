// Package config loads service configuration from the environment.
// A local .env file is honoured in development; real deployments set
// the variables directly.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	PipelineWorkers int           `env:"PIPELINE_WORKERS" default:"8"`
	ConfigCacheTTL  time.Duration `env:"CONFIG_CACHE_TTL" default:"10s"`

	// TicketEndpoint is the ticketing system's create endpoint. Empty
	// disables ticket creation; alerts are still raised.
	TicketEndpoint string `env:"TICKET_ENDPOINT"`
	TicketAPIKey   string `env:"TICKET_API_KEY"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.PipelineWorkers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", cfg.PipelineWorkers)
	}
	if cfg.ConfigCacheTTL < 0 {
		return fmt.Errorf("CONFIG_CACHE_TTL must not be negative, got %s", cfg.ConfigCacheTTL)
	}
	if cfg.TicketAPIKey != "" && cfg.TicketEndpoint == "" {
		return fmt.Errorf("TICKET_ENDPOINT is required when TICKET_API_KEY is set")
	}

	if cfg.AppEnv == "production" {
		if err := validateProductionSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateProductionSSL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}

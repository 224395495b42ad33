// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the engine's configuration.
// Environment variables are parsed from the WORKSHOP_ prefix.
type Config struct {
	// ServiceURL is the base URL of the remote data service.
	ServiceURL string `envconfig:"SERVICE_URL" default:"http://localhost:54321"`
	// FeedURL is the websocket endpoint of the change feed.
	FeedURL string `envconfig:"FEED_URL" default:"ws://localhost:54321/realtime/v1"`
	// APIKey authenticates the application against the service.
	APIKey string `envconfig:"API_KEY" default:""`

	// PageSize is the request pagination page size.
	PageSize int `envconfig:"PAGE_SIZE" default:"50"`

	// StartupTimeout bounds the initial config + session fetch.
	StartupTimeout time.Duration `envconfig:"STARTUP_TIMEOUT" default:"7s"`
	// InactivityTimeout collapses navigation after this much idle time.
	InactivityTimeout time.Duration `envconfig:"INACTIVITY_TIMEOUT" default:"10m"`

	// StatePath is the local persisted-state file.
	StatePath string `envconfig:"STATE_PATH" default:".workshop-state.json"`

	// DebugLogging enables debug-level output.
	DebugLogging bool `envconfig:"DEBUG" default:"false"`
}

// New creates a Config by parsing environment variables.
// Example: WORKSHOP_SERVICE_URL, WORKSHOP_PAGE_SIZE.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("WORKSHOP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("service_url", cfg.ServiceURL).
		Str("feed_url", cfg.FeedURL).
		Int("page_size", cfg.PageSize).
		Dur("startup_timeout", cfg.StartupTimeout).
		Msg("Configuration loaded")

	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("SERVICE_URL must not be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("STARTUP_TIMEOUT must be positive, got %s", c.StartupTimeout)
	}
	return nil
}

// NewForTesting creates a config for tests without touching the environment.
func NewForTesting() *Config {
	return &Config{
		ServiceURL:        "http://localhost:54321",
		FeedURL:           "ws://localhost:54321/realtime/v1",
		PageSize:          50,
		StartupTimeout:    7 * time.Second,
		InactivityTimeout: 10 * time.Minute,
		StatePath:         ".workshop-state-test.json",
	}
}

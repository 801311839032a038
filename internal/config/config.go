// Package config loads deskmirror settings from the environment.
//
// Variables are prefixed with DESKMIRROR_ and grouped by section, for
// example DESKMIRROR_DESKTOP_BACKEND or DESKMIRROR_LOG_LEVEL. Command-line
// flags override whatever is loaded here.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "DESKMIRROR"

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendPoll   = "poll"
	BackendNative = "native"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "streamable-http"
)

// Config holds all application configuration.
type Config struct {
	Desktop DesktopConfig
	Log     LogConfig
	Server  ServerConfig
}

// DesktopConfig selects and tunes the desktop backend.
type DesktopConfig struct {
	Backend      string        `split_words:"true" default:"memory"`
	Fixture      string        `split_words:"true"`
	PollInterval time.Duration `split_words:"true" default:"250ms"`
	OpTimeout    time.Duration `split_words:"true" default:"5s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `split_words:"true" default:"info"`
	Development bool   `split_words:"true" default:"false"`
}

// ServerConfig holds the MCP and HTTP endpoint configuration.
type ServerConfig struct {
	Transport   string `split_words:"true" default:"stdio"`
	Port        int    `split_words:"true" default:"8080"`
	MetricsAddr string `split_words:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Desktop: DesktopConfig{
			Backend:      BackendMemory,
			PollInterval: 250 * time.Millisecond,
			OpTimeout:    5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Port:      8080,
		},
	}
}

// Validate checks enumerated values and durations.
func (c *Config) Validate() error {
	switch c.Desktop.Backend {
	case BackendMemory, BackendPoll, BackendNative:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Desktop.Backend, BackendMemory, BackendPoll, BackendNative)
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Server.Transport, TransportStdio, TransportHTTP)
	}
	if c.Desktop.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Desktop.PollInterval)
	}
	if c.Desktop.OpTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got %s", c.Desktop.OpTimeout)
	}
	return nil
}

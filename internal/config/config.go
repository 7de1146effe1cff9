// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the gateway needs to start.
type Config struct {
	ListenAddr   string   `env:"SIGNGATE_LISTEN_ADDR" envDefault:":8080"`
	Origin       string   `env:"SIGNGATE_ORIGIN" envDefault:"http://localhost:8080"`
	BackendURL   string   `env:"SIGNGATE_BACKEND_URL" envDefault:"http://localhost:8000"`
	TokenDBPath  string   `env:"SIGNGATE_TOKEN_DB" envDefault:"signgate-tokens.db"`
	Debug        bool     `env:"SIGNGATE_DEBUG" envDefault:"false"`
	OTLPEndpoint string   `env:"SIGNGATE_OTLP_ENDPOINT"`
	CORSOrigins  []string `env:"SIGNGATE_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

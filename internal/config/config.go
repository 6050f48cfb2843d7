package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config carries every runtime knob of the API process. Values come from the
// environment; only the Postgres DSN is optional (the service falls back to
// in-memory stores for local development when it is unset).
type Config struct {
	ListenAddr   string `env:"EXGATE_LISTEN_ADDR" envDefault:":8080"`
	PostgresDSN  string `env:"EXGATE_PG_DSN"`
	RateBurst    int    `env:"EXGATE_RATE_BURST" envDefault:"50"`
	RatePerSec   int    `env:"EXGATE_RATE_PER_SEC" envDefault:"25"`
	MaxBodyBytes int64  `env:"EXGATE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Load parses configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.RateBurst <= 0 || cfg.RatePerSec <= 0 {
		return Config{}, fmt.Errorf("rate limit values must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("max body bytes must be positive")
	}
	return cfg, nil
}

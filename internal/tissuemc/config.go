package tissuemc

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// RuntimeConfig holds command knobs read from the environment.
type RuntimeConfig struct {
	Workers      int    `env:"TISSUEMC_WORKERS" envDefault:"0"`
	OutputDir    string `env:"TISSUEMC_OUTPUT_DIR" envDefault:"."`
	Debug        bool   `env:"TISSUEMC_DEBUG" envDefault:"false"`
	Progress     bool   `env:"TISSUEMC_PROGRESS" envDefault:"true"`
	OTelEndpoint string `env:"TISSUEMC_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"TISSUEMC_OTEL_ENABLED" envDefault:"true"`
	Profile      string `env:"TISSUEMC_PROFILE"`
}

// ParseRuntimeConfig loads the runtime configuration from environment variables.
func ParseRuntimeConfig() (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w: %w", ErrConfiguration, err)
	}
	if cfg.Workers < 0 {
		return cfg, invalid("TISSUEMC_WORKERS", "must be >= 0, got %d", cfg.Workers)
	}
	return cfg, nil
}

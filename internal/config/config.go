// Package config loads orchestrator configuration from environment
// variables, in the teacher's MONO_*-prefixed, env-tag style (here
// TESTORCH_*-prefixed).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/qualgent/testorch/internal/env"
)

// ErrDSNRequired is returned when StoreBackend=postgres but StoreDSN is empty.
var ErrDSNRequired = errors.New("TESTORCH_STORE_DSN is required when TESTORCH_STORE_BACKEND=postgres")

// ErrUnknownBackend is returned for an unrecognized StoreBackend value.
var ErrUnknownBackend = errors.New("unknown TESTORCH_STORE_BACKEND")

// Config holds the full orchestrator configuration (spec §6.4).
type Config struct {
	// StoreBackend selects the JobStore implementation: "memory" or "postgres".
	StoreBackend string `env:"TESTORCH_STORE_BACKEND" default:"memory"`
	// StoreDSN is the PostgreSQL connection string, required for the
	// postgres backend. Named store_url in spec §6.4.
	StoreDSN string `env:"TESTORCH_STORE_DSN"`

	TickInterval    time.Duration `env:"TESTORCH_TICK_INTERVAL" default:"5s"`
	MaxRetries      int           `env:"TESTORCH_MAX_RETRIES" default:"3"`
	DefaultPriority string        `env:"TESTORCH_DEFAULT_PRIORITY" default:"medium"`
	DefaultTarget   string        `env:"TESTORCH_DEFAULT_TARGET" default:"emulator"`

	// PoolSpecPath, when set, points to a JSON file describing the agent/
	// device pool; when empty the default pool spec (spec §6.5) is seeded.
	PoolSpecPath string `env:"TESTORCH_POOL_SPEC_PATH"`

	Observability ObservabilityConfig
}

// Load reads Config from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env loader cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
		// no further requirements
	case "postgres":
		if c.StoreDSN == "" {
			return ErrDSNRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.StoreBackend)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("TESTORCH_MAX_RETRIES must be >= 1, got %d", c.MaxRetries)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TESTORCH_TICK_INTERVAL must be > 0, got %s", c.TickInterval)
	}
	return nil
}

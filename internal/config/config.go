package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Settings is the process-wide configuration record. The values that the
// reference implementation fixed at compile time (no-improvement limit,
// deterministic random behaviour) live here.
type Settings struct {
	// MaxNoImprove is the number of consecutive no-improvement passes an
	// optimizer tolerates before reporting itself stuck.
	MaxNoImprove int `env:"TH_MAX_NO_IMPROVE" envDefault:"5"`

	// Deterministic switches the seed source from the system entropy pool to
	// a monotone counter. Full determinism also depends on the configured
	// budgets (wall-clock budgets stay timing dependent).
	Deterministic bool `env:"TH_DETERMINISTIC" envDefault:"false"`

	// ResidualPollInterval is the sleep between child probes during the
	// residual-communication phase.
	ResidualPollInterval time.Duration `env:"TH_RESIDUAL_POLL" envDefault:"1s"`

	Logging struct {
		Level  string `env:"TH_LOG_LEVEL" envDefault:"info"`
		Format string `env:"TH_LOG_FORMAT" envDefault:"json"`
		Output string `env:"TH_LOG_OUTPUT" envDefault:"stderr"`
	}

	HTTP struct {
		Port int `env:"TH_HTTP_PORT" envDefault:"8080"`
	}
}

// Load parses the settings from environment variables.
func Load() (*Settings, error) {
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings with every variable unset.
func Default() *Settings {
	cfg := &Settings{}
	cfg.MaxNoImprove = 5
	cfg.ResidualPollInterval = time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.HTTP.Port = 8080
	return cfg
}

// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultLightName is used when no lights are configured.
const DefaultLightName = "main"

// Config represents the application configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Timing     TimingConfig     `yaml:"timing"`
	Lights     []LightConfig    `yaml:"lights" validate:"dive"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// LoggingConfig represents logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// TimingConfig represents the cycle timing of a traffic light.
type TimingConfig struct {
	CycleMinMs     int    `yaml:"cycle_min_ms" mapstructure:"cycle_min_ms" default:"4000" validate:"gte=1"`
	CycleMaxMs     int    `yaml:"cycle_max_ms" mapstructure:"cycle_max_ms" default:"6000" validate:"gte=1,gtefield=CycleMinMs"`
	PollIntervalMs int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms" default:"1" validate:"gte=1,lte=1000"`
	Seed           uint64 `yaml:"seed" mapstructure:"seed"`
}

// LightConfig represents a single traffic light.
// Settings may override any timing field for this light only.
type LightConfig struct {
	Name     string         `yaml:"name" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SimulationConfig represents how the lights are driven.
type SimulationConfig struct {
	Crossers          int `yaml:"crossers" default:"1" validate:"gte=0,lte=100"`
	DurationSec       int `yaml:"duration_sec" validate:"gte=0"` // 0 runs until a signal arrives
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms" default:"2000" validate:"gte=1"`
}

// Load loads configuration from a YAML file.
// An empty path yields the defaults. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	// Defaults first so explicit zero values from the file or environment survive
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, errors.Wrap(err, "failed to read environment overrides")
	}

	if len(cfg.Lights) == 0 {
		cfg.Lights = []LightConfig{{Name: DefaultLightName}}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("TRAFFICLIGHT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TRAFFICLIGHT_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "TRAFFICLIGHT_SEED")
		}
		c.Timing.Seed = seed
	}
	if v := os.Getenv("TRAFFICLIGHT_CROSSERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "TRAFFICLIGHT_CROSSERS")
		}
		c.Simulation.Crossers = n
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool, len(c.Lights))
	for _, l := range c.Lights {
		if seen[l.Name] {
			return errors.Newf("duplicate light name %q", l.Name)
		}
		seen[l.Name] = true

		if _, err := c.LightTiming(l); err != nil {
			return err
		}
	}

	return nil
}

// LightTiming returns the global timing with the light's settings applied on top.
func (c *Config) LightTiming(l LightConfig) (TimingConfig, error) {
	timing := c.Timing
	if len(l.Settings) == 0 {
		return timing, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &timing,
	})
	if err != nil {
		return TimingConfig{}, errors.Wrap(err, "failed to create settings decoder")
	}
	if err := decoder.Decode(l.Settings); err != nil {
		return TimingConfig{}, errors.Wrapf(err, "light %s: failed to decode settings", l.Name)
	}

	if err := validator.New().Struct(timing); err != nil {
		return TimingConfig{}, errors.Wrapf(err, "light %s: invalid timing", l.Name)
	}
	return timing, nil
}

// CycleMin returns the shortest cycle duration.
func (t TimingConfig) CycleMin() time.Duration {
	return time.Duration(t.CycleMinMs) * time.Millisecond
}

// CycleMax returns the longest cycle duration.
func (t TimingConfig) CycleMax() time.Duration {
	return time.Duration(t.CycleMaxMs) * time.Millisecond
}

// PollInterval returns the sleep between elapsed-time checks.
func (t TimingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// Duration returns how long the simulation runs, or 0 to run until stopped.
func (s SimulationConfig) Duration() time.Duration {
	return time.Duration(s.DurationSec) * time.Second
}

// ShutdownTimeout returns how long shutdown may wait for background work.
func (s SimulationConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutMs) * time.Millisecond
}

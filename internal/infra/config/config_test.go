package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trafficlight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 4000, cfg.Timing.CycleMinMs)
	assert.Equal(t, 6000, cfg.Timing.CycleMaxMs)
	assert.Equal(t, 1, cfg.Timing.PollIntervalMs)
	assert.Equal(t, 1, cfg.Simulation.Crossers)
	assert.Equal(t, 2*time.Second, cfg.Simulation.ShutdownTimeout())
	assert.Zero(t, cfg.Simulation.Duration())
	require.Len(t, cfg.Lights, 1)
	assert.Equal(t, DefaultLightName, cfg.Lights[0].Name)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
timing:
  cycle_min_ms: 100
  cycle_max_ms: 200
  seed: 9
lights:
  - name: north
  - name: east
    settings:
      cycle_min_ms: 300
      cycle_max_ms: 400
simulation:
  crossers: 3
  duration_sec: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.CycleMin())
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.CycleMax())
	assert.Equal(t, time.Millisecond, cfg.Timing.PollInterval())
	assert.Equal(t, 3, cfg.Simulation.Crossers)
	assert.Equal(t, 10*time.Second, cfg.Simulation.Duration())
	require.Len(t, cfg.Lights, 2)

	north, err := cfg.LightTiming(cfg.Lights[0])
	require.NoError(t, err)
	assert.Equal(t, cfg.Timing, north)

	east, err := cfg.LightTiming(cfg.Lights[1])
	require.NoError(t, err)
	assert.Equal(t, 300, east.CycleMinMs)
	assert.Equal(t, 400, east.CycleMaxMs)
	assert.Equal(t, uint64(9), east.Seed)
	assert.Equal(t, 1, east.PollIntervalMs)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "max below min",
			content: "timing:\n  cycle_min_ms: 500\n  cycle_max_ms: 100\n",
			errMsg:  "CycleMaxMs",
		},
		{
			name:    "unknown log level",
			content: "logging:\n  level: loud\n",
			errMsg:  "Level",
		},
		{
			name:    "duplicate light",
			content: "lights:\n  - name: a\n  - name: a\n",
			errMsg:  "duplicate light name",
		},
		{
			name:    "missing light name",
			content: "lights:\n  - settings:\n      seed: 1\n",
			errMsg:  "Name",
		},
		{
			name:    "unknown light setting",
			content: "lights:\n  - name: a\n    settings:\n      colour: amber\n",
			errMsg:  "colour",
		},
		{
			name:    "invalid light timing",
			content: "lights:\n  - name: a\n    settings:\n      cycle_min_ms: 9000\n",
			errMsg:  "invalid timing",
		},
		{
			name:    "malformed yaml",
			content: "timing: [",
			errMsg:  "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRAFFICLIGHT_LOG_LEVEL", "warn")
	t.Setenv("TRAFFICLIGHT_SEED", "123")
	t.Setenv("TRAFFICLIGHT_CROSSERS", "4")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, uint64(123), cfg.Timing.Seed)
	assert.Equal(t, 4, cfg.Simulation.Crossers)
}

func TestLoad_ExplicitZeroCrossers(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "simulation:\n  crossers: 0\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Simulation.Crossers)
		assert.Equal(t, 2*time.Second, cfg.Simulation.ShutdownTimeout())
		assert.Equal(t, 4000, cfg.Timing.CycleMinMs)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("TRAFFICLIGHT_CROSSERS", "0")

		cfg, err := Load(writeConfig(t, "simulation:\n  crossers: 3\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Simulation.Crossers)
	})
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("TRAFFICLIGHT_SEED", "-1")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRAFFICLIGHT_SEED")
}

package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/trafficlight/internal/app/traffic"
	"github.com/osa030/trafficlight/internal/app/trafficlight"
	"github.com/osa030/trafficlight/internal/infra/config"
)

func fastTiming(seed uint64) trafficlight.Config {
	return trafficlight.Config{
		CycleMin:     10 * time.Millisecond,
		CycleMax:     20 * time.Millisecond,
		PollInterval: time.Millisecond,
		Seed:         seed,
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Lights = append(cfg.Lights, config.LightConfig{
		Name:     "side",
		Settings: map[string]any{"cycle_min_ms": 100, "cycle_max_ms": 150},
	})

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	require.Len(t, opts.Lights, 2)
	assert.Equal(t, config.DefaultLightName, opts.Lights[0].Name)
	assert.Equal(t, trafficlight.DefaultConfig(), opts.Lights[0].Config)
	assert.Equal(t, 100*time.Millisecond, opts.Lights[1].Config.CycleMin)
	assert.Equal(t, 150*time.Millisecond, opts.Lights[1].Config.CycleMax)
	assert.Equal(t, 1, opts.Crossers)
	assert.Equal(t, 2*time.Second, opts.ShutdownTimeout)
}

func TestNewRunner_Errors(t *testing.T) {
	_, err := NewRunner(Options{})
	assert.Error(t, err)

	_, err = NewRunner(Options{Lights: []LightSpec{{Name: "bad"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, trafficlight.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "bad")
}

func TestRunner_Run(t *testing.T) {
	r, err := NewRunner(Options{
		Lights: []LightSpec{
			{Name: "north", Config: fastTiming(1)},
			{Name: "east", Config: fastTiming(2)},
		},
		Crossers:        2,
		ShutdownTimeout: time.Second,
	})
	require.NoError(t, err)

	north, ok := r.Light("north")
	require.True(t, ok)
	_, ok = r.Light("west")
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	summary, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Positive(t, summary.Crossings)
	require.Len(t, summary.Lights, 2)
	for _, l := range summary.Lights {
		assert.False(t, l.Running, l.Name)
		assert.Positive(t, l.Transitions, l.Name)
	}

	// Lights are stopped and cannot be restarted.
	_, err = north.Start(context.Background())
	assert.True(t, errors.Is(err, trafficlight.ErrStopped))
}

func TestRunner_RunTwice(t *testing.T) {
	r, err := NewRunner(Options{Lights: []LightSpec{{Name: "only", Config: fastTiming(3)}}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = r.Run(ctx)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.True(t, errors.Is(err, trafficlight.ErrStopped))
}

func TestRunner_EveryCrosserCrossesOnGreen(t *testing.T) {
	r, err := NewRunner(Options{
		Lights:   []LightSpec{{Name: "only", Config: fastTiming(4)}},
		Crossers: 3,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	summary, err := r.Run(ctx)
	require.NoError(t, err)

	require.Len(t, summary.Lights, 1)
	greens := (summary.Lights[0].Transitions + 1) / 2
	require.Positive(t, greens)

	// A single shared waiter would cross at most once per green.
	assert.Greater(t, summary.Crossings, int64(greens))
	assert.Zero(t, summary.Lights[0].Watchers)
}

func TestRunner_StartFailureReportsShutdown(t *testing.T) {
	r, err := NewRunner(Options{
		Lights: []LightSpec{
			{Name: "first", Config: fastTiming(5)},
			{Name: "second", Config: fastTiming(6)},
		},
		ShutdownTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	first, ok := r.Light("first")
	require.True(t, ok)
	second, ok := r.Light("second")
	require.True(t, ok)

	// The second light refuses to start; a stubborn handle keeps shutdown from finishing.
	second.Stop()
	release := make(chan struct{})
	defer close(release)
	r.group.Add(traffic.Spawn(context.Background(), "stubborn", func(ctx context.Context) error {
		<-release
		return nil
	}))

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, trafficlight.ErrStopped))
	assert.True(t, errors.Is(err, traffic.ErrShutdownTimeout))
	assert.Contains(t, err.Error(), "second")
	assert.Len(t, summary.Lights, 2)
	assert.Eventually(t, func() bool { return !first.Status().Running }, time.Second, time.Millisecond)
}

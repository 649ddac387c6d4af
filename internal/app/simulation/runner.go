// Package simulation drives a set of traffic lights and the crossers waiting on them.
package simulation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/trafficlight/internal/app/traffic"
	"github.com/osa030/trafficlight/internal/app/trafficlight"
	"github.com/osa030/trafficlight/internal/domain/phase"
	"github.com/osa030/trafficlight/internal/infra/config"
)

const defaultShutdownTimeout = 2 * time.Second

// LightSpec describes one light to create.
type LightSpec struct {
	Name   string
	Config trafficlight.Config
}

// Options holds runner configuration.
type Options struct {
	Lights          []LightSpec
	Crossers        int           // Crossers per light; every one of them crosses on each green
	ShutdownTimeout time.Duration // Upper bound for joining background work
}

// OptionsFromConfig converts the loaded configuration into runner options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		Crossers:        cfg.Simulation.Crossers,
		ShutdownTimeout: cfg.Simulation.ShutdownTimeout(),
	}

	for _, l := range cfg.Lights {
		timing, err := cfg.LightTiming(l)
		if err != nil {
			return Options{}, err
		}
		opts.Lights = append(opts.Lights, LightSpec{
			Name: l.Name,
			Config: trafficlight.Config{
				CycleMin:     timing.CycleMin(),
				CycleMax:     timing.CycleMax(),
				PollInterval: timing.PollInterval(),
				Seed:         timing.Seed,
			},
		})
	}
	return opts, nil
}

// LightSummary is the final state of one light.
type LightSummary struct {
	Name string
	trafficlight.Status
}

// Summary reports what happened during a run.
type Summary struct {
	Lights    []LightSummary
	Crossings int64
}

type namedLight struct {
	name  string
	light *trafficlight.Light
}

// Runner owns the lights and joins their goroutines at shutdown.
type Runner struct {
	opts      Options
	lights    []namedLight
	group     *traffic.Group
	crossings atomic.Int64
}

// NewRunner creates every configured light. Nothing runs until Run.
func NewRunner(opts Options) (*Runner, error) {
	if len(opts.Lights) == 0 {
		return nil, errors.New("no lights configured")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	r := &Runner{
		opts:  opts,
		group: traffic.NewGroup(),
	}
	for _, spec := range opts.Lights {
		l, err := trafficlight.New(spec.Config)
		if err != nil {
			return nil, errors.Wrapf(err, "light %s", spec.Name)
		}
		r.lights = append(r.lights, namedLight{name: spec.Name, light: l})
	}
	return r, nil
}

// Light returns the light with the given name.
func (r *Runner) Light(name string) (*trafficlight.Light, bool) {
	for _, nl := range r.lights {
		if nl.name == name {
			return nl.light, true
		}
	}
	return nil, false
}

// Run starts every light and its crossers, blocks until ctx ends,
// then stops the lights and joins all background goroutines.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	for _, nl := range r.lights {
		h, err := nl.light.Start(ctx)
		if err != nil {
			startErr := errors.Wrapf(err, "failed to start light %s", nl.name)
			return r.summary(), errors.Join(startErr, r.shutdown())
		}
		r.group.Add(h)
		zlog.Info().Msgf("simulation: started %s as %q", nl.light, nl.name)
	}

	// WaitForGreen releases one waiter per green, so the first crosser of a light
	// uses it and the rest follow the light's broadcast.
	g, gctx := errgroup.WithContext(ctx)
	for _, nl := range r.lights {
		for i := 1; i <= r.opts.Crossers; i++ {
			if i == 1 {
				g.Go(func() error {
					return r.cross(gctx, nl, i)
				})
				continue
			}

			w := nl.light.Subscribe()
			g.Go(func() error {
				defer nl.light.Unsubscribe(w.ID())
				return r.follow(gctx, nl, w, i)
			})
		}
	}

	// Crossers only return early on error; otherwise wait for the caller to end the run.
	crossErr := g.Wait()
	if crossErr == nil {
		<-ctx.Done()
	}

	err := errors.Join(crossErr, r.shutdown())
	return r.summary(), err
}

// cross waits for green over and over until the run ends.
func (r *Runner) cross(ctx context.Context, nl namedLight, crosser int) error {
	for {
		err := nl.light.WaitForGreen(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, trafficlight.ErrStopped) {
				return nil
			}
			return errors.Wrapf(err, "crosser %d at %s", crosser, nl.name)
		}

		r.crossed(nl, crosser)
	}
}

// follow crosses on every green event seen by the watcher until the run ends.
func (r *Runner) follow(ctx context.Context, nl namedLight, w *trafficlight.Watcher, crosser int) error {
	for {
		ev, err := w.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, trafficlight.ErrWatcherClosed) {
				return nil
			}
			return errors.Wrapf(err, "crosser %d at %s", crosser, nl.name)
		}
		if ev.Phase != phase.Green {
			continue
		}

		r.crossed(nl, crosser)
	}
}

func (r *Runner) crossed(nl namedLight, crosser int) {
	n := r.crossings.Add(1)
	zlog.Info().Int("light", nl.light.ID()).Int64("crossings", n).
		Msgf("simulation: crosser %d crossing %q on green", crosser, nl.name)
}

// shutdown stops every light and joins the registered goroutines.
func (r *Runner) shutdown() error {
	for _, nl := range r.lights {
		nl.light.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
	defer cancel()

	if err := r.group.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("simulation: shutdown incomplete")
		return err
	}
	zlog.Info().Int("handles", r.group.Len()).Msg("simulation: all lights joined")
	return nil
}

func (r *Runner) summary() Summary {
	s := Summary{Crossings: r.crossings.Load()}
	for _, nl := range r.lights {
		s.Lights = append(s.Lights, LightSummary{Name: nl.name, Status: nl.light.Status()})
	}
	return s
}

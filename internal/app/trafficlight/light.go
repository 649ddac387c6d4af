// Package trafficlight provides a traffic light that cycles its phase on its own goroutine.
package trafficlight

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trafficlight/internal/app/channel"
	"github.com/osa030/trafficlight/internal/app/traffic"
	"github.com/osa030/trafficlight/internal/domain/phase"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("traffic light already started")
	ErrStopped        = errors.New("traffic light stopped")
	ErrInvalidConfig  = errors.New("invalid traffic light config")
)

// Kind is the traffic object kind used in diagnostic labels.
const Kind = "traffic light"

// Config holds the cycle timing of a light.
type Config struct {
	CycleMin     time.Duration // Shortest cycle duration
	CycleMax     time.Duration // Longest cycle duration
	PollInterval time.Duration // Sleep between elapsed-time checks
	Seed         uint64        // Random seed for cycle durations (0 = random)
}

// DefaultConfig returns a 4-6 second cycle polled every millisecond.
func DefaultConfig() Config {
	return Config{
		CycleMin:     4000 * time.Millisecond,
		CycleMax:     6000 * time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

// Validate checks the timing bounds.
func (c Config) Validate() error {
	if c.CycleMin < time.Millisecond {
		return errors.Wrapf(ErrInvalidConfig, "cycle min %v must be at least 1ms", c.CycleMin)
	}
	if c.CycleMax < c.CycleMin {
		return errors.Wrapf(ErrInvalidConfig, "cycle max %v is below cycle min %v", c.CycleMax, c.CycleMin)
	}
	if c.PollInterval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "poll interval %v must be positive", c.PollInterval)
	}
	return nil
}

// Light is a traffic light that toggles between red and green.
// The cycling goroutine is the only writer of the phase.
type Light struct {
	traffic.Object

	mu          sync.RWMutex
	phase       phase.Phase
	transitions uint64
	lastChange  time.Time
	cycle       time.Duration

	// Phase changes for WaitForGreen
	queue *channel.Channel[phase.Phase]
	// Phase changes for watchers
	hub *Hub

	config Config
	rng    *rand.Rand

	lifeMu  sync.Mutex
	handle  *traffic.Handle
	stopped bool
}

// New creates a red light that is not cycling yet.
func New(config Config) (*Light, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &Light{
		Object: traffic.NewObject(Kind),
		phase:  phase.Red,
		queue:  channel.New[phase.Phase](),
		hub:    NewHub(),
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}, nil
}

// CurrentPhase returns the phase at the time of the call.
func (l *Light) CurrentPhase() phase.Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

// WaitForGreen blocks until the light publishes a change to green.
// Only changes published after the previous consumer are seen: a caller
// that arrives while the light is already green waits for the next cycle.
func (l *Light) WaitForGreen(ctx context.Context) error {
	for {
		p, err := l.queue.Receive(ctx)
		if errors.Is(err, channel.ErrClosed) {
			return errors.Wrapf(ErrStopped, "%s", l)
		}
		if err != nil {
			return err
		}
		if p == phase.Green {
			return nil
		}
	}
}

// Start launches the cycling goroutine. It may be called once per light;
// later calls return ErrAlreadyStarted and start nothing.
// The returned handle belongs to the caller, who joins it at shutdown.
func (l *Light) Start(ctx context.Context) (*traffic.Handle, error) {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	if l.stopped {
		return nil, errors.Wrapf(ErrStopped, "%s", l)
	}
	if l.handle != nil {
		return nil, errors.Wrapf(ErrAlreadyStarted, "%s", l)
	}

	l.handle = traffic.Spawn(ctx, l.String(), l.cycleThroughPhases)
	return l.handle, nil
}

// Stop ends the cycling goroutine and releases every waiter. It does not wait.
func (l *Light) Stop() {
	l.lifeMu.Lock()
	l.stopped = true
	h := l.handle
	l.lifeMu.Unlock()

	if h != nil {
		h.Stop()
	}
	l.queue.Close()
	l.hub.Close()
}

// Wait joins the cycling goroutine. It returns immediately if the light was never started.
func (l *Light) Wait() error {
	l.lifeMu.Lock()
	h := l.handle
	l.lifeMu.Unlock()

	if h == nil {
		return nil
	}
	return h.Wait()
}

// Subscribe registers a watcher that sees every published phase change.
func (l *Light) Subscribe() *Watcher {
	return l.hub.Subscribe()
}

// Unsubscribe removes a watcher.
func (l *Light) Unsubscribe(id string) {
	l.hub.Unsubscribe(id)
}

// Status returns a snapshot of the light.
func (l *Light) Status() Status {
	l.lifeMu.Lock()
	running := false
	if l.handle != nil {
		select {
		case <-l.handle.Done():
		default:
			running = true
		}
	}
	l.lifeMu.Unlock()

	l.mu.RLock()
	defer l.mu.RUnlock()
	return Status{
		ID:            l.ID(),
		Label:         l.String(),
		Phase:         l.phase,
		Running:       running,
		Transitions:   l.transitions,
		LastChange:    l.lastChange,
		CycleDuration: l.cycle,
		Watchers:      l.hub.Count(),
	}
}

// cycleThroughPhases toggles the phase every randomly drawn cycle until ctx ends.
func (l *Light) cycleThroughPhases(ctx context.Context) error {
	defer l.release()

	zlog.Info().Int("light", l.ID()).Msgf("trafficlight: %s cycling through phases", l)

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	cycle := l.nextCycle()
	lastUpdate := time.Now()

	for {
		select {
		case <-ctx.Done():
			zlog.Debug().Int("light", l.ID()).Msgf("trafficlight: %s stopped", l)
			return nil
		case <-ticker.C:
		}

		if time.Since(lastUpdate) < cycle {
			continue
		}

		next, at := l.toggle()
		zlog.Info().Int("light", l.ID()).Msgf("trafficlight: %s status changed to %s", l, next)

		l.queue.Send(next)
		l.hub.Broadcast(l.ID(), next, at)

		cycle = l.nextCycle()
		lastUpdate = time.Now()
	}
}

// toggle flips the phase and records the change.
func (l *Light) toggle() (phase.Phase, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.phase = l.phase.Next()
	l.transitions++
	l.lastChange = time.Now()
	return l.phase, l.lastChange
}

// nextCycle draws a cycle duration uniformly from [CycleMin, CycleMax] in whole milliseconds.
func (l *Light) nextCycle() time.Duration {
	lo := l.config.CycleMin.Milliseconds()
	hi := l.config.CycleMax.Milliseconds()
	d := time.Duration(lo+l.rng.Int64N(hi-lo+1)) * time.Millisecond

	l.mu.Lock()
	l.cycle = d
	l.mu.Unlock()

	zlog.Debug().Int("light", l.ID()).Msgf("trafficlight: next cycle in %v", d)
	return d
}

// release closes the outputs once the cycling goroutine exits so no waiter blocks forever.
func (l *Light) release() {
	l.lifeMu.Lock()
	l.stopped = true
	l.lifeMu.Unlock()

	l.queue.Close()
	l.hub.Close()
}

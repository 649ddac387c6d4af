package traffic

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrShutdownTimeout is returned when handles do not finish before the shutdown deadline.
var ErrShutdownTimeout = errors.New("shutdown timed out")

// Group collects handles so an owner can stop and join them together.
type Group struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	order   []string
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{
		handles: make(map[string]*Handle),
	}
}

// Add registers a handle. Adding the same handle twice has no effect.
func (g *Group) Add(h *Handle) {
	if h == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.handles[h.ID()]; ok {
		return
	}
	g.handles[h.ID()] = h
	g.order = append(g.order, h.ID())
}

// Len returns the number of registered handles.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.handles)
}

// Handles returns the registered handles in registration order.
func (g *Group) Handles() []*Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Handle, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.handles[id])
	}
	return result
}

// StopAll asks every handle to stop.
func (g *Group) StopAll() {
	for _, h := range g.Handles() {
		h.Stop()
	}
}

// Wait joins every handle and returns their combined errors.
func (g *Group) Wait() error {
	var errs []error
	for _, h := range g.Handles() {
		if err := h.Wait(); err != nil {
			errs = append(errs, errors.Wrapf(err, "%s", h.Name()))
		}
	}
	return errors.Join(errs...)
}

// Shutdown stops every handle and waits for them until ctx ends.
func (g *Group) Shutdown(ctx context.Context) error {
	g.StopAll()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		for _, h := range g.Handles() {
			select {
			case <-h.Done():
			default:
				zlog.Warn().Str("handle", h.Name()).Msg("traffic: handle still running at shutdown deadline")
			}
		}
		return errors.Join(ErrShutdownTimeout, ctx.Err())
	}
}

package traffic

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Handle represents a background goroutine started by Spawn.
type Handle struct {
	id     string
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Spawn runs fn on a new goroutine with a context derived from parent.
// The context is canceled by Stop or when parent ends.
func Spawn(parent context.Context, name string, fn func(ctx context.Context) error) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		id:     uuid.New().String(),
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		err := fn(ctx)
		// Ending because the handle's own context ended is a normal exit,
		// whether that came from Stop, parent cancel or a parent deadline.
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil && errors.Is(err, ctxErr) {
			err = nil
		}

		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
	}()

	return h
}

// ID returns the handle identifier.
func (h *Handle) ID() string {
	return h.id
}

// Name returns the name given to Spawn.
func (h *Handle) Name() string {
	return h.name
}

// Stop asks the goroutine to exit. It does not wait.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed when the goroutine has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the goroutine returns and reports its error.
// Returning the handle context's error after it ended is not reported as an error.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

// Err returns the goroutine error, or nil while it is still running.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

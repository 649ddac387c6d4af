// Package channel provides a latest-wins blocking handoff channel.
package channel

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned by Receive once the channel is closed and drained.
var ErrClosed = errors.New("channel closed")

// Channel hands values from senders to receivers.
// Only the most recent unread value is kept; older unread values are discarded.
// Send never blocks. Receive blocks until a value is pending, the channel is
// closed or the context ends.
type Channel[T any] struct {
	mu      sync.Mutex
	latest  T
	pending bool
	dropped uint64
	closed  bool

	wake chan struct{} // one-slot wake token, refilled by Send
	done chan struct{} // closed by Close
}

// New creates an empty channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Send stores v as the pending value and wakes one blocked receiver.
// An unread pending value is replaced. Send on a closed channel does nothing.
func (c *Channel[T]) Send(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.pending {
		c.dropped++
	}
	c.latest = v
	c.pending = true

	select {
	case c.wake <- struct{}{}:
	default:
		// A token is already waiting for a receiver.
	}
}

// Receive waits for a pending value and consumes it.
// Pending values are still delivered after Close; ErrClosed is returned
// only when the channel is closed and empty.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	for {
		v, ok, closed := c.take()
		if ok {
			return v, nil
		}
		if closed {
			return v, ErrClosed
		}

		select {
		case <-c.wake:
		case <-c.done:
		case <-ctx.Done():
			var zero T
			return zero, errors.Wrap(ctx.Err(), "channel receive")
		}
	}
}

// TryReceive consumes the pending value without blocking.
func (c *Channel[T]) TryReceive() (T, bool) {
	v, ok, _ := c.take()
	return v, ok
}

// Len returns the number of pending values (0 or 1).
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return 1
	}
	return 0
}

// Dropped returns how many unread values were replaced by a later Send.
func (c *Channel[T]) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the channel and releases every blocked receiver.
// It is safe to call Close more than once.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// take consumes the pending value if there is one.
func (c *Channel[T]) take() (v T, ok bool, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		v = c.latest
		var zero T
		c.latest = zero
		c.pending = false
		return v, true, c.closed
	}
	return v, false, c.closed
}

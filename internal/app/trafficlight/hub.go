package trafficlight

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/trafficlight/internal/app/channel"
	"github.com/osa030/trafficlight/internal/domain/phase"
)

// ErrWatcherClosed is returned by Watcher.Next after unsubscribe or light shutdown.
var ErrWatcherClosed = errors.New("watcher closed")

// Watcher receives every phase change of one light on its own latest-wins channel.
type Watcher struct {
	id string
	ch *channel.Channel[Event]
}

// ID returns the subscription ID.
func (w *Watcher) ID() string {
	return w.id
}

// Next blocks until the next phase change is available.
// Only the latest unread change is kept for a slow watcher.
func (w *Watcher) Next(ctx context.Context) (Event, error) {
	ev, err := w.ch.Receive(ctx)
	if errors.Is(err, channel.ErrClosed) {
		return ev, ErrWatcherClosed
	}
	return ev, err
}

// Hub broadcasts phase changes to any number of watchers.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]*Watcher
	closed   bool

	seqMu sync.Mutex
	seq   uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		watchers: make(map[string]*Watcher),
	}
}

// Subscribe registers a new watcher.
// A watcher created after Close is already closed.
func (h *Hub) Subscribe() *Watcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &Watcher{
		id: uuid.New().String(),
		ch: channel.New[Event](),
	}
	if h.closed {
		w.ch.Close()
		return w
	}
	h.watchers[w.id] = w
	return w
}

// Unsubscribe removes a watcher and releases anyone blocked in its Next.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if w, ok := h.watchers[id]; ok {
		w.ch.Close()
		delete(h.watchers, id)
	}
}

// Broadcast numbers the change and hands it to every watcher.
func (h *Hub) Broadcast(lightID int, p phase.Phase, at time.Time) Event {
	h.seqMu.Lock()
	h.seq++
	ev := Event{
		Seq:     h.seq,
		LightID: lightID,
		Phase:   p,
		At:      at,
	}
	h.seqMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, w := range h.watchers {
		w.ch.Send(ev)
	}
	return ev
}

// Count returns the number of active watchers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Close closes every watcher. Later broadcasts reach nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, w := range h.watchers {
		w.ch.Close()
		delete(h.watchers, id)
	}
}

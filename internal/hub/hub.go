// Package hub fans new-listing events out to realtime subscribers. Publishing
// never blocks the ingestion pipeline; a subscriber that stops draining its
// channel is detached instead.
package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// EventNewVehicle is the type tag on every broadcast event.
const EventNewVehicle = "new_vehicle"

const defaultClientBuffer = 16

// Event is the payload delivered to every subscriber.
type Event struct {
	Type    string          `json:"type"`
	Vehicle vehicle.Listing `json:"vehicle"`
}

// Marshal renders the event as the wire payload sent to realtime clients.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Subscription is one subscriber's event feed. The channel is closed when the
// subscriber is detached or the hub shuts down.
type Subscription struct {
	C  <-chan Event
	id uint64
	ch chan Event
}

// Hub is a subscribe/publish broadcaster safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]chan Event
	nextID  uint64
	closed  bool

	buffer  int
	dropped atomic.Int64
	logger  *zap.Logger
}

// New builds a Hub. clientBuffer is the per-subscriber channel capacity.
func New(clientBuffer int, logger *zap.Logger) *Hub {
	if clientBuffer <= 0 {
		clientBuffer = defaultClientBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[uint64]chan Event),
		buffer:  clientBuffer,
		logger:  logger,
	}
}

// Subscribe registers a new subscriber. After CloseAll the returned
// subscription is already closed.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return &Subscription{C: ch, ch: ch}
	}
	h.nextID++
	id := h.nextID
	h.clients[id] = ch
	return &Subscription{C: ch, id: id, ch: ch}
}

// Unsubscribe detaches the subscription and closes its channel. Safe to call
// after CloseAll or twice.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[s.id]; ok {
		delete(h.clients, s.id)
		close(ch)
	}
}

// Publish delivers the listing to every subscriber. A subscriber whose buffer
// is full is detached so one stalled client cannot slow the pipeline.
func (h *Hub) Publish(l vehicle.Listing) {
	evt := Event{Type: EventNewVehicle, Vehicle: l}

	h.mu.Lock()
	var stalled []uint64
	for id, ch := range h.clients {
		select {
		case ch <- evt:
		default:
			stalled = append(stalled, id)
		}
	}
	for _, id := range stalled {
		close(h.clients[id])
		delete(h.clients, id)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if len(stalled) > 0 {
		h.dropped.Add(int64(len(stalled)))
		h.logger.Warn("detached stalled realtime subscribers",
			zap.Int("detached", len(stalled)),
			zap.Int("remaining", n),
		)
	}
}

// ClientCount reports the number of attached subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped reports how many subscribers were detached for falling behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// CloseAll detaches every subscriber and rejects future ones. Used at
// shutdown so no stream handler blocks forever.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// Package hub tracks connected streaming clients and fans workload events
// out to them. It is the only piece of state shared between the streaming
// sessions and the load orchestrator's background goroutines.
package hub

import (
	"log"
	"sync"
	"time"

	"github.com/Antkuz17/Mickey-Hackies/metrics"
)

// EventKind names a discrete workload occurrence.
type EventKind string

// NoteStart marks one step of the sequenced-notes workload.
const NoteStart EventKind = "note_start"

// Event is a transient broadcast payload, interleaved with regular telemetry
// on each subscriber's channel.
type Event struct {
	Kind      EventKind `json:"event"`
	Note      string    `json:"note"`
	Index     *int      `json:"index"`
	Timestamp float64   `json:"timestamp"`
}

// NewEvent stamps an event with the current unix time.
func NewEvent(kind EventKind, note string, index int) Event {
	return Event{
		Kind:      kind,
		Note:      note,
		Index:     &index,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

// eventBufferSize bounds how far a subscriber may fall behind before it is
// considered dead.
const eventBufferSize = 16

// Client is the hub-side handle for one streaming connection. The connection
// itself is written only by its session goroutine, which drains Events
// between telemetry ticks; orchestrator goroutines never touch it.
type Client struct {
	events chan Event
	closed bool // guarded by the owning Hub's mutex
}

// NewClient creates an unregistered client handle.
func NewClient() *Client {
	return &Client{events: make(chan Event, eventBufferSize)}
}

// Events returns the channel the session drains. It is closed when the
// client is unregistered.
func (c *Client) Events() <-chan Event { return c.events }

// Hub is the subscriber registry. All mutation happens under one mutex;
// Broadcast may be called from any goroutine.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	metrics *metrics.Metrics
}

// New creates an empty hub. Metrics may be nil.
func New(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		metrics: m,
	}
}

// Register adds a client to the live set. Registering the same handle twice
// is a no-op.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.ConnectedClients.Set(float64(len(h.clients)))
	}
}

// Unregister removes a client and closes its event channel. Safe to call on
// an absent or already-removed handle.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// Broadcast delivers ev to every registered client. A client whose buffer
// cannot accept the event has stalled or died; it is dropped so the registry
// never carries a stale handle past one delivery attempt. Failures are
// logged, never returned, and never affect delivery to the other clients.
// With no clients registered this is a no-op.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	var failed []*Client
	for c := range h.clients {
		select {
		case c.events <- ev:
		default:
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		log.Printf("Failed to send event to client: buffer full, dropping subscriber")
		h.dropLocked(c)
		if h.metrics != nil {
			h.metrics.SubscribersDropped.Inc()
		}
	}
	if h.metrics != nil {
		h.metrics.EventsBroadcast.Inc()
	}
}

// Len reports the number of registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		if h.metrics != nil {
			h.metrics.ConnectedClients.Set(float64(len(h.clients)))
		}
	}
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

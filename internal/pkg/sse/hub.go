package sse

import (
	"log/slog"
	"sync"
)

const bufferSize = 16

// Event is one message on a tenant's stream.
type Event struct {
	TenantID string
	Event    string
	Data     interface{}
}

// Hub fans events out to the open streams of one tenant. Publishing never
// blocks: a stream whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[*stream]struct{}
	closed  bool
}

type stream struct {
	ch   chan Event
	once sync.Once
}

func (s *stream) close() { s.once.Do(func() { close(s.ch) }) }

func NewHub() *Hub {
	return &Hub{streams: make(map[string]map[*stream]struct{})}
}

// Subscribe opens a stream for a tenant. The channel is closed by the returned
// cancel function or by Close, whichever comes first; cancel may be called
// more than once.
func (h *Hub) Subscribe(tenantID string) (<-chan Event, func()) {
	st := &stream{ch: make(chan Event, bufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		st.close()
		return st.ch, func() {}
	}
	if h.streams[tenantID] == nil {
		h.streams[tenantID] = make(map[*stream]struct{})
	}
	h.streams[tenantID][st] = struct{}{}

	return st.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.streams[tenantID][st]; !ok {
			return
		}
		delete(h.streams[tenantID], st)
		if len(h.streams[tenantID]) == 0 {
			delete(h.streams, tenantID)
		}
		st.close()
	}
}

// Publish delivers to every stream of the event's tenant and reports how many
// streams received it.
func (h *Hub) Publish(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for st := range h.streams[event.TenantID] {
		select {
		case st.ch <- event:
			delivered++
		default:
			slog.Debug("SSE stream buffer full, event dropped", "tenant_id", event.TenantID, "event", event.Event)
		}
	}
	return delivered
}

// Close ends every open stream so handlers return and the server can shut
// down. Later subscriptions get an already-closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for tenantID, set := range h.streams {
		for st := range set {
			st.close()
		}
		delete(h.streams, tenantID)
	}
}

// Streams returns the number of open streams for a tenant.
func (h *Hub) Streams(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[tenantID])
}

// Package hub streams deployment lifecycle events to HTTP clients as
// server-sent events.
//
// Each event is written with its bus sequence number as the SSE id and its
// type as the SSE event name. The hub keeps the most recent events so that a
// client connecting mid-deployment, or reconnecting with Last-Event-ID, sees
// what it missed. Clients may narrow the stream with ?domain=<id>.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ecordtopo/internal/logging"
	"ecordtopo/internal/orchestrator"
)

// DefaultHistory is the number of events replayed to new clients.
const DefaultHistory = 256

type client struct {
	domain int // 0 streams every domain
	events chan orchestrator.Event
}

func (c *client) wants(ev orchestrator.Event) bool {
	return c.domain == 0 || c.domain == ev.DomainID
}

// Hub fans orchestrator events out to SSE clients.
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	history   []orchestrator.Event
	limit     int
	closed    bool
	keepalive time.Duration
	log       logging.Logger
}

// New creates a new Hub
func New(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		clients:   make(map[*client]struct{}),
		limit:     DefaultHistory,
		keepalive: 30 * time.Second,
		log:       log,
	}
}

// Run forwards events from src until ctx is done or src is closed, then
// ends every client stream.
func (h *Hub) Run(ctx context.Context, src <-chan orchestrator.Event) {
	defer h.close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			h.log.Debug(ctx, "lifecycle event",
				logging.String("type", string(ev.Type)),
				logging.Domain(ev.DomainID),
				logging.String("to", string(ev.To)))
			h.Publish(ev)
		}
	}
}

// Publish records ev and sends it to every interested client. Slow clients
// miss the event; they can catch up by reconnecting with Last-Event-ID.
func (h *Hub) Publish(ev orchestrator.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.history = append(h.history, ev)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.events <- ev:
		default:
			h.log.Warn(context.Background(), "event client too slow, event dropped", logging.Domain(ev.DomainID))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// subscribe registers c and returns the stored events it should replay:
// those after lastSeq that match its domain filter.
func (h *Hub) subscribe(c *client, lastSeq uint64) ([]orchestrator.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	var replay []orchestrator.Event
	for _, ev := range h.history {
		if ev.Seq > lastSeq && c.wants(ev) {
			replay = append(replay, ev)
		}
	}
	h.clients[c] = struct{}{}
	return replay, true
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.events)
	}
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	c := &client{events: make(chan orchestrator.Event, 64)}
	if raw := r.URL.Query().Get("domain"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			http.Error(w, fmt.Sprintf("invalid domain %q", raw), http.StatusBadRequest)
			return
		}
		c.domain = id
	}
	var lastSeq uint64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			lastSeq = n
		}
	}

	replay, ok := h.subscribe(c, lastSeq)
	if !ok {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer h.unsubscribe(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected\n\n")
	for _, ev := range replay {
		if err := writeEvent(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
	return err
}

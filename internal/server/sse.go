package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/cadence/internal/model"
)

const (
	// defaultReplaySize is how many recent events a Hub keeps for
	// Last-Event-ID replay.
	defaultReplaySize = 1000
	// sseKeepalive is the gap between comment frames on an idle stream.
	sseKeepalive = 15 * time.Second
	// sseRetry is the reconnect delay suggested to browsers.
	sseRetry = 3 * time.Second
	// sseClientBuffer bounds the events queued for one slow client.
	sseClientBuffer = 64
)

type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// topicFilter is a set of NATS-style subject patterns: "*" matches one
// segment, a trailing ">" matches one or more. An empty filter matches every
// topic.
type topicFilter [][]string

// parseTopicFilter parses a comma-separated pattern list.
func parseTopicFilter(raw string) topicFilter {
	var f topicFilter
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, strings.Split(p, "."))
		}
	}
	return f
}

func (f topicFilter) match(topic string) bool {
	if len(f) == 0 {
		return true
	}
	segs := strings.Split(topic, ".")
	for _, pattern := range f {
		if matchSegments(pattern, segs) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, topic []string) bool {
	for i, p := range pattern {
		if p == ">" && i == len(pattern)-1 {
			return len(topic) > i
		}
		if i >= len(topic) || (p != "*" && p != topic[i]) {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// Hub fans published events out to connected SSE clients and keeps the most
// recent ones for replay. It implements events.Publisher.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	replay  []sseEvent
	oldest  int // index of the oldest event once replay is full
	clients map[*sseClient]struct{}
}

type sseClient struct {
	filter topicFilter
	ch     chan sseEvent
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return newHub(defaultReplaySize)
}

func newHub(replaySize int) *Hub {
	return &Hub{
		replay:  make([]sseEvent, 0, replaySize),
		clients: make(map[*sseClient]struct{}),
	}
}

// Publish marshals event and broadcasts it.
func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.broadcast(topic, payload)
	return nil
}

// Close is a no-op; streams end with their requests.
func (h *Hub) Close() error { return nil }

// Clients returns the number of connected streams.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(topic string, payload []byte) sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt := sseEvent{ID: h.seq, Topic: topic, Data: payload}
	if len(h.replay) < cap(h.replay) {
		h.replay = append(h.replay, evt)
	} else if cap(h.replay) > 0 {
		h.replay[h.oldest] = evt
		h.oldest = (h.oldest + 1) % cap(h.replay)
	}

	for c := range h.clients {
		if !c.filter.match(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			// Slow client; drop.
		}
	}
	return evt
}

// subscribe registers a client and returns the buffered events after lastID
// that pass filter. Registration and backlog are taken under one lock, so
// nothing is lost or repeated between replay and live delivery.
func (h *Hub) subscribe(filter topicFilter, lastID uint64) (*sseClient, []sseEvent) {
	c := &sseClient{filter: filter, ch: make(chan sseEvent, sseClientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	var backlog []sseEvent
	if lastID > 0 {
		for _, evt := range h.sinceLocked(lastID) {
			if filter.match(evt.Topic) {
				backlog = append(backlog, evt)
			}
		}
	}
	return c, backlog
}

func (h *Hub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns buffered events with ID > lastID, oldest first.
func (h *Hub) eventsSince(lastID uint64) []sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sinceLocked(lastID)
}

func (h *Hub) sinceLocked(lastID uint64) []sseEvent {
	var out []sseEvent
	n := len(h.replay)
	for i := range n {
		evt := h.replay[(h.oldest+i)%n]
		if evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

// lastEventID reads the resume point from the Last-Event-ID header or, for
// clients that cannot set headers, the last_event_id query parameter.
func lastEventID(r *http.Request) uint64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// handleEventStream handles GET /events/stream?topics=a,b (SSE).
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeErrorStatus(w, http.StatusNotImplemented, model.KindInternal, "event stream is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, model.KindInternal, "streaming not supported")
		return
	}

	client, backlog := s.hub.subscribe(parseTopicFilter(r.URL.Query().Get("topics")), lastEventID(r))
	defer s.hub.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", sseRetry.Milliseconds())
	for _, evt := range backlog {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			io.WriteString(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, evt sseEvent) {
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.ID, evt.Topic, evt.Data)
}

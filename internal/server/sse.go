package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/commentfeed/internal/metrics"
)

const (
	// replayBufferSize is how many recent events are kept for Last-Event-ID
	// reconnection.
	replayBufferSize = 1000

	// subscriberBuffer bounds each subscriber's queue; a slow reader loses
	// events instead of stalling inserts.
	subscriberBuffer = 64

	sseKeepaliveInterval = 15 * time.Second
)

// streamEvent is one broadcast event, numbered in broadcast order.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte // JSON-encoded payload
}

// sseHub fans broadcast events out to stream subscribers (SSE and gRPC) and
// keeps a bounded history for replay after reconnects.
//
// Event IDs on the wire are "<epoch>-<seq>". The epoch changes every time
// the process starts, so a Last-Event-ID from an earlier run is recognised
// and answered with the whole history rather than matched against a
// restarted counter.
type sseHub struct {
	mu      sync.Mutex
	epoch   string
	lastID  uint64
	history []streamEvent // oldest first, at most replayBufferSize
	subs    map[*hubSubscriber]struct{}
}

// hubSubscriber is a single connected stream consumer.
type hubSubscriber struct {
	topics []string // topic patterns; empty matches everything
	ch     chan streamEvent
}

func newSSEHub() *sseHub {
	return &sseHub{
		epoch: strconv.FormatInt(time.Now().UnixNano(), 36),
		subs:  make(map[*hubSubscriber]struct{}),
	}
}

// eventID formats seq as a wire event ID for this hub.
func (h *sseHub) eventID(seq uint64) string {
	return h.epoch + "-" + strconv.FormatUint(seq, 10)
}

// replayCursor resolves a Last-Event-ID into the sequence number to replay
// after. An empty ID asks for no replay. An ID from another epoch, one this
// hub never issued, or one it cannot parse replays everything retained.
// Callers hold h.mu.
func (h *sseHub) replayCursor(lastEventID string) (after uint64, replay bool) {
	if lastEventID == "" {
		return 0, false
	}
	epoch, rawSeq, ok := strings.Cut(lastEventID, "-")
	if !ok || epoch != h.epoch {
		return 0, true
	}
	seq, err := strconv.ParseUint(rawSeq, 10, 64)
	if err != nil || seq > h.lastID {
		return 0, true
	}
	return seq, true
}

// broadcast records an event and offers it to every matching subscriber.
func (h *sseHub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := streamEvent{ID: h.lastID, Topic: topic, Data: payload}

	if len(h.history) == replayBufferSize {
		copy(h.history, h.history[1:])
		h.history = h.history[:replayBufferSize-1]
	}
	h.history = append(h.history, evt)

	for sub := range h.subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// subscribe registers a subscriber. When lastEventID is non-empty, the
// buffered events after it are returned (see replayCursor); registration and
// replay happen under one lock so nothing falls between them.
func (h *sseHub) subscribe(topics []string, lastEventID string) (*hubSubscriber, []streamEvent) {
	sub := &hubSubscriber{topics: topics, ch: make(chan streamEvent, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}

	after, ok := h.replayCursor(lastEventID)
	if !ok {
		return sub, nil
	}
	var replay []streamEvent
	for _, evt := range h.history {
		if evt.ID > after && sub.matches(evt.Topic) {
			replay = append(replay, evt)
		}
	}
	return sub, replay
}

func (h *sseHub) unsubscribe(sub *hubSubscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// subscriberCount is used by tests and health reporting.
func (h *sseHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *hubSubscriber) matches(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	for _, pattern := range s.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a NATS-style
// pattern: "*" matches one segment, a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// parseTopics splits a comma-separated topics query parameter.
func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream.
func (s *BoardServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	lastEventID := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	sub, replay := s.sseHub.subscribe(parseTopics(r.URL.Query().Get("topics")), lastEventID)
	defer s.sseHub.unsubscribe(sub)

	gauge := metrics.StreamSubscribers.WithLabelValues("sse")
	gauge.Inc()
	defer gauge.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, evt := range replay {
		s.sseHub.writeEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub.ch:
			s.sseHub.writeEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h *sseHub) writeEvent(w http.ResponseWriter, evt streamEvent) {
	fmt.Fprintf(w, "id:%s\nevent:%s\ndata:%s\n\n", h.eventID(evt.ID), evt.Topic, evt.Data)
}

package server

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/commentfeed/internal/events"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()

	sub, _ := hub.subscribe(nil, "")
	defer hub.unsubscribe(sub)

	hub.broadcast(events.TopicCommentCreated, []byte(`{"comment":{"id":"cm-1"}}`))

	select {
	case evt := <-sub.ch:
		if evt.Topic != events.TopicCommentCreated {
			t.Fatalf("expected topic=%q, got %q", events.TopicCommentCreated, evt.Topic)
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := newSSEHub()

	sub, _ := hub.subscribe([]string{events.TopicCommentCreated}, "")
	defer hub.unsubscribe(sub)

	hub.broadcast(events.TopicCommentDeleted, []byte(`{}`))
	hub.broadcast(events.TopicCommentCreated, []byte(`{}`))

	select {
	case evt := <-sub.ch:
		if evt.Topic != events.TopicCommentCreated {
			t.Fatalf("expected topic=%q, got %q", events.TopicCommentCreated, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-sub.ch:
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestSSEHub_Replay(t *testing.T) {
	hub := newSSEHub()
	for i := 0; i < 5; i++ {
		hub.broadcast(events.TopicCommentCreated, []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	sub, replay := hub.subscribe(nil, hub.eventID(3))
	defer hub.unsubscribe(sub)

	if len(replay) != 2 {
		t.Fatalf("expected 2 replayed events, got %d", len(replay))
	}
	if replay[0].ID != 4 || replay[1].ID != 5 {
		t.Fatalf("replayed ids = %d,%d", replay[0].ID, replay[1].ID)
	}
}

func TestSSEHub_ReplayCursor(t *testing.T) {
	hub := newSSEHub()
	for i := 0; i < 3; i++ {
		hub.broadcast(events.TopicCommentCreated, []byte(`{}`))
	}

	for _, tc := range []struct {
		name        string
		lastEventID string
		wantIDs     []uint64
	}{
		{"NoHeader", "", nil},
		{"SameEpoch", hub.eventID(1), []uint64{2, 3}},
		{"UpToDate", hub.eventID(3), nil},
		{"PreviousRun", "0abc-2", []uint64{1, 2, 3}},
		{"AheadOfCounter", hub.eventID(7), []uint64{1, 2, 3}},
		{"BareNumber", "2", []uint64{1, 2, 3}},
		{"Garbage", hub.epoch + "-x", []uint64{1, 2, 3}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sub, replay := hub.subscribe(nil, tc.lastEventID)
			defer hub.unsubscribe(sub)
			var got []uint64
			for _, evt := range replay {
				got = append(got, evt.ID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tc.wantIDs) {
				t.Fatalf("replayed %v, want %v", got, tc.wantIDs)
			}
		})
	}
}

func TestSSEHub_EpochDiffersAcrossHubs(t *testing.T) {
	a := newSSEHub()
	time.Sleep(time.Millisecond)
	b := newSSEHub()
	if a.epoch == b.epoch {
		t.Fatalf("two hubs share epoch %q", a.epoch)
	}
	if strings.Contains(a.epoch, "-") {
		t.Fatalf("epoch %q contains the separator", a.epoch)
	}
}

func TestSSEHub_ReplayBufferBounded(t *testing.T) {
	hub := newSSEHub()
	for i := 0; i < replayBufferSize+10; i++ {
		hub.broadcast(events.TopicCommentCreated, []byte(`{}`))
	}
	if len(hub.history) != replayBufferSize {
		t.Fatalf("history length = %d, want %d", len(hub.history), replayBufferSize)
	}
	if hub.history[0].ID != 11 {
		t.Fatalf("oldest retained id = %d, want 11", hub.history[0].ID)
	}
}

func TestSSEHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := newSSEHub()
	sub, _ := hub.subscribe(nil, "")
	defer hub.unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.broadcast(events.TopicCommentCreated, []byte(`{}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
	if len(sub.ch) != subscriberBuffer {
		t.Fatalf("queued = %d, want %d", len(sub.ch), subscriberBuffer)
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()
	sub, _ := hub.subscribe(nil, "")
	if hub.subscriberCount() != 1 {
		t.Fatalf("count = %d", hub.subscriberCount())
	}
	hub.unsubscribe(sub)
	if hub.subscriberCount() != 0 {
		t.Fatalf("count after unsubscribe = %d", hub.subscriberCount())
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern, topic string
		want           bool
	}{
		{"board.comment.created", "board.comment.created", true},
		{"board.comment.*", "board.comment.created", true},
		{"board.*", "board.comment.created", false},
		{"board.>", "board.comment.created", true},
		{"board.>", "board", false},
		{"board.comment.deleted", "board.comment.created", false},
		{"*.comment.created", "board.comment.created", true},
		{"board.comment.created.x", "board.comment.created", false},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestParseTopics(t *testing.T) {
	got := parseTopics(" board.comment.created, ,board.>")
	if len(got) != 2 || got[0] != "board.comment.created" || got[1] != "board.>" {
		t.Fatalf("parseTopics = %q", got)
	}
	if parseTopics("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

// readSSEEvent reads lines until a blank line and returns the id, event and data fields.
func readSSEEvent(t *testing.T, r *bufio.Reader) (id, event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return id, event, data
			}
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
}

func TestHandleEventStream_DeliversInserts(t *testing.T) {
	srv, _, _ := newTestServer()
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream?topics=board.comment.created", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	waitForSubscribers(t, srv, 1)
	if _, err := srv.CreateComment(context.Background(), "Bo", "Excited to start!"); err != nil {
		t.Fatal(err)
	}

	id, event, data := readSSEEvent(t, bufio.NewReader(resp.Body))
	if id != srv.sseHub.eventID(1) || event != events.TopicCommentCreated {
		t.Fatalf("got id=%q event=%q", id, event)
	}
	created, err := events.DecodeCommentCreated([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if created.Comment.Message != "Excited to start!" {
		t.Fatalf("message = %q", created.Comment.Message)
	}
}

func TestHandleEventStream_LastEventIDReplay(t *testing.T) {
	srv, _, _ := newTestServer()
	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three"} {
		if _, err := srv.CreateComment(ctx, "Bo", msg); err != nil {
			t.Fatal(err)
		}
	}

	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	defer ts.Close()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, ts.URL+"/v1/events/stream", nil)
	req.Header.Set("Last-Event-ID", srv.sseHub.eventID(1))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	for _, want := range []string{"two", "three"} {
		_, _, data := readSSEEvent(t, r)
		created, err := events.DecodeCommentCreated([]byte(data))
		if err != nil {
			t.Fatal(err)
		}
		if created.Comment.Message != want {
			t.Fatalf("replayed %q, want %q", created.Comment.Message, want)
		}
	}
}

func TestHandleEventStream_IDFromPreviousRunReplaysAll(t *testing.T) {
	srv, _, _ := newTestServer()
	ctx := context.Background()
	for _, msg := range []string{"one", "two"} {
		if _, err := srv.CreateComment(ctx, "Bo", msg); err != nil {
			t.Fatal(err)
		}
	}

	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	defer ts.Close()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, ts.URL+"/v1/events/stream", nil)
	// An ID issued before a restart, numerically past this run's counter.
	req.Header.Set("Last-Event-ID", "zzzz-41")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	for i, want := range []string{"one", "two"} {
		id, _, data := readSSEEvent(t, r)
		if id != srv.sseHub.eventID(uint64(i+1)) {
			t.Fatalf("id = %q", id)
		}
		created, err := events.DecodeCommentCreated([]byte(data))
		if err != nil {
			t.Fatal(err)
		}
		if created.Comment.Message != want {
			t.Fatalf("replayed %q, want %q", created.Comment.Message, want)
		}
	}
}

func waitForSubscribers(t *testing.T, srv *BoardServer, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.sseHub.subscriberCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscriber(s)", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

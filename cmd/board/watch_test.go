package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/commentfeed/internal/client"
	"github.com/alfredjeanlab/commentfeed/internal/feed"
	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/ui"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes a session makes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type memStore struct {
	mu       sync.Mutex
	comments []*model.Comment
	fetchErr error
	seq      int
	gate     chan struct{}
}

func (s *memStore) FetchComments(ctx context.Context) ([]*model.Comment, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]*model.Comment(nil), s.comments...), nil
}

func (s *memStore) InsertComment(ctx context.Context, name, message string) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	c := &model.Comment{
		ID:        "cm-" + string(rune('a'+s.seq)),
		Name:      name,
		Message:   message,
		CreatedAt: time.Date(2026, 3, 1, 12, s.seq, 0, 0, time.UTC),
	}
	s.comments = append([]*model.Comment{c}, s.comments...)
	return c, nil
}

type nopNotifier struct{}

func (nopNotifier) SubscribeInserts(client.InsertHandler) (client.Subscription, error) {
	return nopSubscription{}, nil
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

func newTestSession(store *memStore) (*watchSession, *syncBuffer, *syncBuffer) {
	out, errOut := &syncBuffer{}, &syncBuffer{}
	view := &ui.FeedView{Out: out}
	return newWatchSession(store, nopNotifier{}, view, errOut, ""), out, errOut
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchSession_PostFromInput(t *testing.T) {
	store := &memStore{}
	s, out, errOut := newTestSession(store)
	defer s.close()
	ctx := context.Background()

	if err := s.feed.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(out.String(), "No comments yet") {
		t.Errorf("expected empty-board frame:\n%s", out.String())
	}

	s.handleLine(ctx, "Excited to start!")
	if !strings.Contains(errOut.String(), "/name") {
		t.Errorf("posting without a name should prompt for one, got %q", errOut.String())
	}

	s.handleLine(ctx, "/name Bo")
	s.handleLine(ctx, "Excited to start!")
	waitFor(t, "comment in feed", func() bool { return len(s.feed.Snapshot().Comments) == 1 })

	st := s.feed.Snapshot()
	if st.Comments[0].Name != "Bo" || st.Message != "" {
		t.Errorf("state = %+v", st)
	}
	waitFor(t, "frame with comment", func() bool { return strings.Contains(out.String(), "Excited to start!") })
}

func TestWatchSession_ValidationErrorReported(t *testing.T) {
	s, _, errOut := newTestSession(&memStore{})
	defer s.close()
	ctx := context.Background()
	_ = s.feed.Start(ctx)

	s.handleLine(ctx, "/name Bo")
	s.handleLine(ctx, strings.Repeat("x", model.MaxMessageLength+1))
	waitFor(t, "validation message", func() bool { return strings.Contains(errOut.String(), "500 characters") })
}

func TestWatchSession_RetryAfterLoadFailure(t *testing.T) {
	store := &memStore{fetchErr: errors.New("connection refused")}
	s, out, _ := newTestSession(store)
	defer s.close()
	ctx := context.Background()

	if err := s.feed.Start(ctx); !errors.Is(err, feed.ErrLoadFailed) {
		t.Fatalf("Start error = %v, want LoadFailed", err)
	}
	if !strings.Contains(out.String(), "Could not load comments") {
		t.Errorf("expected load error banner:\n%s", out.String())
	}

	store.mu.Lock()
	store.fetchErr = nil
	store.comments = []*model.Comment{{ID: "cm-1", Name: "Ann", Message: "Hello", CreatedAt: time.Now()}}
	store.mu.Unlock()

	s.handleLine(ctx, "/retry")
	waitFor(t, "reload", func() bool {
		st := s.feed.Snapshot()
		return st.LoadErr == nil && len(st.Comments) == 1
	})
}

func TestWatchSession_CloseWaitsForRetry(t *testing.T) {
	store := &memStore{fetchErr: errors.New("connection refused")}
	s, out, _ := newTestSession(store)
	ctx := context.Background()
	_ = s.feed.Start(ctx)

	gate := make(chan struct{})
	store.mu.Lock()
	store.fetchErr = nil
	store.gate = gate
	store.comments = []*model.Comment{{ID: "cm-1", Name: "Ann", Message: "Hello", CreatedAt: time.Now()}}
	store.mu.Unlock()

	s.handleLine(ctx, "/retry")
	waitFor(t, "retry in flight", func() bool { return s.feed.Snapshot().Loading })

	closed := make(chan struct{})
	go func() {
		_ = s.close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("close returned while a retry was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return after the retry finished")
	}
	if strings.Contains(out.String(), "Hello") {
		t.Errorf("frame rendered after close:\n%s", out.String())
	}
}

func TestWatchSession_Commands(t *testing.T) {
	s, _, errOut := newTestSession(&memStore{})
	defer s.close()
	ctx := context.Background()

	if s.handleLine(ctx, "") || s.handleLine(ctx, "/dismiss") {
		t.Error("only /quit should quit")
	}
	s.handleLine(ctx, "/bogus")
	if !strings.Contains(errOut.String(), "unknown command /bogus") {
		t.Errorf("errOut = %q", errOut.String())
	}
	if !s.handleLine(ctx, "/quit") {
		t.Error("/quit should quit")
	}
}

func TestWatchSession_RunStopsOnQuit(t *testing.T) {
	s, _, _ := newTestSession(&memStore{})
	defer s.close()

	done := make(chan error, 1)
	go func() { done <- s.run(context.Background(), strings.NewReader("/quit\n")) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after /quit")
	}
}

func TestWatchSession_RunStopsOnCancel(t *testing.T) {
	s, _, _ := newTestSession(&memStore{})
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, strings.NewReader("")) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestParseMergePolicy(t *testing.T) {
	for in, want := range map[string]feed.MergePolicy{
		"sorted":       feed.SortedMerge,
		"front":        feed.FrontInsert,
		"front-insert": feed.FrontInsert,
	} {
		got, err := parseMergePolicy(in)
		if err != nil || got != want {
			t.Errorf("parseMergePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseMergePolicy("random"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestSelectNotifier(t *testing.T) {
	store := client.NewHTTPClient("http://localhost:0", "")

	n, closeFn, err := selectNotifier("stream", endpoint{NATSURL: "nats://ignored"}, store)
	if err != nil || n != client.Notifier(store) {
		t.Errorf("stream: %v, %v", n, err)
	}
	closeFn()

	n, _, err = selectNotifier("auto", endpoint{}, store)
	if err != nil || n != client.Notifier(store) {
		t.Errorf("auto without NATS should use the stream: %v, %v", n, err)
	}

	if _, _, err := selectNotifier("nats", endpoint{}, store); err == nil {
		t.Error("nats without a URL should fail")
	}
	if _, _, err := selectNotifier("smoke-signals", endpoint{}, store); err == nil {
		t.Error("unknown mode should fail")
	}
}

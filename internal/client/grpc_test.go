package client

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/commentfeed/internal/events"
	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/server"
	"github.com/alfredjeanlab/commentfeed/internal/store"
)

// memStore is a minimal in-memory store.Store for driving a real server.
type memStore struct {
	mu       sync.Mutex
	comments map[string]*model.Comment
}

func (m *memStore) InsertComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.comments[c.ID] = &clone
	return nil
}

func (m *memStore) ListComments(context.Context) ([]*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Comment, 0, len(m.comments))
	for _, c := range m.comments {
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NewerThan(out[j]) })
	return out, nil
}

func (m *memStore) GetComment(_ context.Context, id string) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.comments[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

func (m *memStore) CountComments(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.comments), nil
}

func (m *memStore) Close() error { return nil }

func newGRPCTestClient(t *testing.T, token string) *GRPCClient {
	t.Helper()
	bs := server.NewBoardServer(&memStore{comments: map[string]*model.Comment{}}, &events.NoopPublisher{},
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	lis := bufconn.Listen(1 << 20)
	gs := server.NewGRPCServer(bs, token)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGRPCClient_RoundTrip(t *testing.T) {
	c := newGRPCTestClient(t, "secret")
	ctx := context.Background()

	created, err := c.InsertComment(ctx, " Bo ", "Excited to start!")
	if err != nil {
		t.Fatalf("InsertComment: %v", err)
	}
	if created.ID == "" || created.Name != "Bo" || created.CreatedAt.IsZero() {
		t.Fatalf("created = %+v", created)
	}

	got, err := c.FetchComments(ctx)
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(got) != 1 || got[0].ID != created.ID || !got[0].CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("fetched = %+v", got)
	}

	if err := c.DeleteComment(ctx, created.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if err := c.DeleteComment(ctx, created.ID); status.Code(err) != codes.NotFound {
		t.Fatalf("second delete: expected NotFound, got %v", err)
	}

	health, err := c.Health(ctx)
	if err != nil || health != "ok" {
		t.Fatalf("Health = %q, %v", health, err)
	}
}

func TestGRPCClient_InvalidInput(t *testing.T) {
	c := newGRPCTestClient(t, "")
	_, err := c.InsertComment(context.Background(), "", "hi")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPCClient_SubscribeInserts(t *testing.T) {
	c := newGRPCTestClient(t, "secret")

	ch := make(chan *model.Comment, 10)
	sub, err := c.SubscribeInserts(func(cm *model.Comment) { ch <- cm })
	if err != nil {
		t.Fatalf("SubscribeInserts: %v", err)
	}
	defer sub.Unsubscribe()

	created, err := c.InsertComment(context.Background(), "Bo", "Excited to start!")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if got.ID != created.ID {
			t.Fatalf("pushed %q, want %q", got.ID, created.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pushed insert")
	}
}

func TestGRPCClient_SubscribeInsertsUnauthenticated(t *testing.T) {
	c := newGRPCTestClient(t, "secret")
	c.token = "wrong"

	_, err := c.SubscribeInserts(func(*model.Comment) {})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

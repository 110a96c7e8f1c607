// Package client provides the transport-agnostic RemoteStore interface the
// feed synchronizer talks to, with HTTP/JSON (plus SSE), gRPC and NATS
// implementations.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// InsertHandler receives comments pushed by a subscription. Calls for one
// subscription are made sequentially from a single goroutine.
type InsertHandler func(*model.Comment)

// Subscription is a live insert subscription. Unsubscribe stops delivery and
// may be called any number of times.
type Subscription interface {
	Unsubscribe()
}

// Notifier delivers comments inserted by anyone, including this client.
type Notifier interface {
	SubscribeInserts(fn InsertHandler) (Subscription, error)
}

// RemoteStore is the full remote store contract. It is implemented by
// HTTPClient (default) and GRPCClient.
type RemoteStore interface {
	Notifier

	// FetchComments returns every comment, newest first.
	FetchComments(ctx context.Context) ([]*model.Comment, error)
	// InsertComment creates a comment; the store assigns its ID and timestamp.
	InsertComment(ctx context.Context, name, message string) (*model.Comment, error)
	// DeleteComment removes a comment. Moderation only.
	DeleteComment(ctx context.Context, id string) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// subscription cancels a background delivery loop exactly once.
type subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *subscription {
	return &subscription{cancel: cancel}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// reconnectBackOff is the retry schedule for dropped streams.
func reconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0 // retry until unsubscribed
	return b
}

// sleepCtx waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

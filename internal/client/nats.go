package client

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/commentfeed/internal/events"
)

// NATSNotifier delivers inserts straight from the event bus, bypassing the
// server's SSE and gRPC streams. It implements Notifier only; fetches and
// inserts still go through a RemoteStore.
type NATSNotifier struct {
	sub    *events.NATSSubscriber
	logger *slog.Logger
}

var _ Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier connects to the NATS server at url.
func NewNATSNotifier(url string, opts ...nats.Option) (*NATSNotifier, error) {
	sub, err := events.NewNATSSubscriber(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSNotifier{sub: sub, logger: slog.Default()}, nil
}

// SubscribeInserts subscribes to board.comment.created on the bus.
func (n *NATSNotifier) SubscribeInserts(fn InsertHandler) (Subscription, error) {
	ch, cancel, err := n.sub.Subscribe(events.TopicCommentCreated)
	if err != nil {
		return nil, fmt.Errorf("subscribing to inserts: %w", err)
	}
	go func() {
		for msg := range ch {
			created, err := events.DecodeCommentCreated(msg.Data)
			if err != nil {
				n.logger.Warn("skipping malformed insert event", "error", err)
				continue
			}
			fn(created.Comment)
		}
	}()
	return newSubscription(cancel), nil
}

// Close drains the underlying connection.
func (n *NATSNotifier) Close() error {
	return n.sub.Close()
}

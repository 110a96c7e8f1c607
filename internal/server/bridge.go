package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/commentfeed/internal/events"
)

// StartEventBridge relays events published by other replicas on the bus to
// this server's SSE and gRPC subscribers. Events carrying this server's own
// replica ID were already broadcast locally and are skipped. It blocks until
// ctx is done or the subscription closes.
func (s *BoardServer) StartEventBridge(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", events.TopicAll, err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.relay(msg)
		}
	}
}

func (s *BoardServer) relay(msg events.Message) {
	var envelope struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logger.Warn("bridge: undecodable event", "topic", msg.Topic, "error", err)
		return
	}
	if envelope.Source == s.replicaID {
		return
	}
	if msg.Topic == events.TopicCommentCreated {
		if _, err := events.DecodeCommentCreated(msg.Data); err != nil {
			s.logger.Warn("bridge: bad insert event", "error", err)
			return
		}
	}
	s.sseHub.broadcast(msg.Topic, msg.Data)
}

// Package server implements the board's remote store service: comment
// persistence behind HTTP and gRPC, with inserts fanned out to SSE
// streams, gRPC streams and the NATS event bus.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/commentfeed/internal/events"
	"github.com/alfredjeanlab/commentfeed/internal/idgen"
	"github.com/alfredjeanlab/commentfeed/internal/metrics"
	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/store"
)

// BoardServer owns the comment store and every channel that announces
// changes to it.
type BoardServer struct {
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	logger    *slog.Logger

	// replicaID tags published events so the event bridge can skip echoes
	// of this server's own inserts.
	replicaID string
	newID     func() (string, error)
	now       func() time.Time
}

// Option configures a BoardServer.
type Option func(*BoardServer)

// WithLogger sets the logger used for request and event diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *BoardServer) { s.logger = l }
}

// WithIDGenerator overrides how comment IDs are assigned.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *BoardServer) { s.newID = fn }
}

// WithClock overrides the insert timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(s *BoardServer) { s.now = fn }
}

// WithReplicaID sets the ID stamped on published events.
func WithReplicaID(id string) Option {
	return func(s *BoardServer) { s.replicaID = id }
}

// NewBoardServer returns a new BoardServer backed by the given store and publisher.
func NewBoardServer(s store.Store, p events.Publisher, opts ...Option) *BoardServer {
	bs := &BoardServer{
		store:     s,
		publisher: p,
		sseHub:    newSSEHub(),
		logger:    slog.Default(),
		newID:     idgen.Generate,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(bs)
	}
	if bs.replicaID == "" {
		if id, err := idgen.GenerateWithPrefix("replica-"); err == nil {
			bs.replicaID = id
		}
	}
	metrics.Init()
	return bs
}

// ReplicaID returns the ID this server stamps on the events it publishes.
func (s *BoardServer) ReplicaID() string { return s.replicaID }

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// CreateComment validates and stores a new comment, assigning its ID and
// timestamp, then announces it on every change channel.
func (s *BoardServer) CreateComment(ctx context.Context, name, message string) (*model.Comment, error) {
	if err := model.ValidateNewComment(name, message); err != nil {
		return nil, inputError(err.Error())
	}
	name, message = model.NormalizeInput(name, message)

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("assign id: %w", err)
	}
	c := &model.Comment{
		ID:        id,
		Name:      name,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertComment(ctx, c); err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	metrics.CommentsCreated.Inc()

	s.publish(ctx, events.TopicCommentCreated, events.CommentCreated{Comment: c, Source: s.replicaID})
	return c, nil
}

// ListComments returns the full feed, newest first.
func (s *BoardServer) ListComments(ctx context.Context) ([]*model.Comment, error) {
	comments, err := s.store.ListComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	return comments, nil
}

// GetComment returns a single comment or store.ErrNotFound.
func (s *BoardServer) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	if id == "" {
		return nil, inputError("id is required")
	}
	return s.store.GetComment(ctx, id)
}

// DeleteComment removes a comment. It is a moderation capability and is not
// part of the feed flow; subscribers learn of it via board.comment.deleted.
func (s *BoardServer) DeleteComment(ctx context.Context, id string) error {
	if id == "" {
		return inputError("id is required")
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return err
	}
	metrics.CommentsDeleted.Inc()
	s.publish(ctx, events.TopicCommentDeleted, events.CommentDeleted{CommentID: id, Source: s.replicaID})
	return nil
}

// Health reports how many comments the store holds, failing when the store
// is unreachable.
func (s *BoardServer) Health(ctx context.Context) (int, error) {
	n, err := s.store.CountComments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

// publish sends an event to the bus and to locally connected streams.
// Bus failures are logged and counted but never fail the write that caused them.
func (s *BoardServer) publish(ctx context.Context, topic string, event any) {
	outcome := "ok"
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		outcome = "error"
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
	metrics.EventsPublished.WithLabelValues(topic, outcome).Inc()
	s.broadcastEvent(topic, event)
}

// broadcastEvent fans an event out to SSE and gRPC stream subscribers.
func (s *BoardServer) broadcastEvent(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for broadcast", "topic", topic, "error", err)
		return
	}
	s.sseHub.broadcast(topic, payload)
}

// isNotFound reports whether err means the comment does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

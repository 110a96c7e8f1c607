// Package events defines the comment board's change notifications and the
// transports that carry them between server replicas and subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// Event topic constants
const (
	TopicCommentCreated = "board.comment.created"
	TopicCommentDeleted = "board.comment.deleted"

	// TopicAll matches every board topic (NATS-style suffix wildcard).
	TopicAll = "board.>"
)

// CommentCreated is published once for every accepted insert.
// Source is the replica ID of the server that accepted it.
type CommentCreated struct {
	Comment *model.Comment `json:"comment"`
	Source  string         `json:"source,omitempty"`
}

// CommentDeleted is published when a moderator removes a comment.
type CommentDeleted struct {
	CommentID string `json:"comment_id"`
	Source    string `json:"source,omitempty"`
}

// DecodeCommentCreated parses a CommentCreated payload and rejects events
// that carry no usable comment.
func DecodeCommentCreated(data []byte) (*CommentCreated, error) {
	var evt CommentCreated
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", TopicCommentCreated, err)
	}
	if evt.Comment == nil || evt.Comment.ID == "" {
		return nil, fmt.Errorf("decoding %s: missing comment", TopicCommentCreated)
	}
	return &evt, nil
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

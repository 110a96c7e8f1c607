// Package rpc describes the board.v1.CommentService gRPC surface. Messages
// are protobuf well-known types so both ends share the default proto codec
// without generated stubs.
package rpc

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "board.v1.CommentService"

// Full method names.
const (
	MethodListComments     = "/" + ServiceName + "/ListComments"
	MethodCreateComment    = "/" + ServiceName + "/CreateComment"
	MethodDeleteComment    = "/" + ServiceName + "/DeleteComment"
	MethodHealth           = "/" + ServiceName + "/Health"
	MethodSubscribeInserts = "/" + ServiceName + "/SubscribeInserts"
)

// StreamSubscribeInserts is the stream name registered for SubscribeInserts.
const StreamSubscribeInserts = "SubscribeInserts"

// CommentToStruct encodes a comment as a protobuf Struct. Timestamps travel
// as RFC 3339 strings with nanoseconds.
func CommentToStruct(c *model.Comment) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":         c.ID,
		"name":       c.Name,
		"message":    c.Message,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// StructToComment decodes a Struct produced by CommentToStruct.
func StructToComment(s *structpb.Struct) (*model.Comment, error) {
	if s == nil {
		return nil, fmt.Errorf("rpc: nil comment")
	}
	f := s.GetFields()
	c := &model.Comment{
		ID:      f["id"].GetStringValue(),
		Name:    f["name"].GetStringValue(),
		Message: f["message"].GetStringValue(),
	}
	if c.ID == "" {
		return nil, fmt.Errorf("rpc: comment without id")
	}
	if raw := f["created_at"].GetStringValue(); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("rpc: created_at: %w", err)
		}
		c.CreatedAt = t
	}
	return c, nil
}

// CommentsToStruct wraps a feed as {"comments": [...]}.
func CommentsToStruct(comments []*model.Comment) (*structpb.Struct, error) {
	list := make([]any, 0, len(comments))
	for _, c := range comments {
		list = append(list, map[string]any{
			"id":         c.ID,
			"name":       c.Name,
			"message":    c.Message,
			"created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return structpb.NewStruct(map[string]any{"comments": list})
}

// StructToComments decodes a Struct produced by CommentsToStruct.
func StructToComments(s *structpb.Struct) ([]*model.Comment, error) {
	values := s.GetFields()["comments"].GetListValue().GetValues()
	comments := make([]*model.Comment, 0, len(values))
	for i, v := range values {
		c, err := StructToComment(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// NewCommentRequest builds the CreateComment request message.
func NewCommentRequest(name, message string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"name": name, "message": message})
}

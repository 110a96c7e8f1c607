package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// ErrNotFound is returned when a comment with the requested ID does not exist.
var ErrNotFound = errors.New("comment not found")

// Store defines the persistence interface for board comments.
type Store interface {
	// InsertComment persists c. ID must already be set; CreatedAt is
	// assigned by the database when zero and written back to c.
	InsertComment(ctx context.Context, c *model.Comment) error
	// ListComments returns every comment, newest first.
	ListComments(ctx context.Context) ([]*model.Comment, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	CountComments(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}

package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// FormatVersion is written in every export header.
const FormatVersion = "1"

// Lister is the store capability an export needs.
type Lister interface {
	ListComments(ctx context.Context) ([]*model.Comment, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	CommentCount int       `json:"comment_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every comment as JSONL to w: a header line followed by
// one "comment" record per comment, oldest first so successive exports
// differ only by appended lines.
func ExportJSONL(ctx context.Context, s Lister, w io.Writer) error {
	comments, err := s.ListComments(ctx)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[j].NewerThan(comments[i])
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      FormatVersion,
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		CommentCount: len(comments),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range comments {
		if err := enc.Encode(record{Type: "comment", Data: c}); err != nil {
			return fmt.Errorf("encode comment %s: %w", c.ID, err)
		}
	}
	return nil
}

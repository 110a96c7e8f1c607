package postgres

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanComment scans a single row laid out as commentColumns.
func scanComment(row scannable) (*model.Comment, error) {
	var c model.Comment
	if err := row.Scan(&c.ID, &c.Name, &c.Message, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// scanComments drains rows into a slice. It never returns a nil slice on
// success so callers can encode an empty feed as [].
func scanComments(rows *sql.Rows) ([]*model.Comment, error) {
	comments := []*model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// nullTime converts a zero time to SQL NULL so the column default applies.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

package model

import "time"

// Comment is a single entry on the community board. ID and CreatedAt are
// assigned by the store at insert time; a comment is never edited afterwards.
type Comment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewerThan reports whether c sorts ahead of other in a newest-first feed.
// Equal timestamps fall back to the ID so the ordering is total.
func (c *Comment) NewerThan(other *Comment) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.After(other.CreatedAt)
	}
	return c.ID > other.ID
}

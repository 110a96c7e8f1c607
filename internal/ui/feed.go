package ui

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alfredjeanlab/commentfeed/internal/feed"
	"github.com/alfredjeanlab/commentfeed/internal/model"
)

const clearScreen = "\x1b[H\x1b[2J"

// FeedView draws synchronizer snapshots as a plain-text board.
type FeedView struct {
	Out   io.Writer
	Width int  // wrap column; 0 means no wrapping
	Clear bool // redraw in place instead of appending
	Now   func() time.Time
}

// Render writes one frame for st.
func (v *FeedView) Render(st feed.State) error {
	var b strings.Builder
	if v.Clear {
		b.WriteString(clearScreen)
	}

	status := fmt.Sprintf("%d comments", len(st.Comments))
	switch {
	case st.Loading:
		status += " · loading…"
	case st.Submitting:
		status += " · posting…"
	}
	b.WriteString(RenderAccent("Community board") + "  " + RenderMuted(status) + "\n")

	if st.LoadErr != nil {
		b.WriteString(RenderError("Could not load comments: "+st.LoadErr.Err.Error()) + "\n")
		if st.CanRetry() {
			b.WriteString(RenderMuted("type /retry to try again") + "\n")
		}
	}
	if st.SubmitErr != nil {
		b.WriteString(RenderError("Could not post comment: "+st.SubmitErr.Err.Error()) + "\n")
	}
	b.WriteString("\n")

	switch {
	case len(st.Comments) == 0 && st.Loaded:
		b.WriteString(RenderMuted("No comments yet. Be the first!") + "\n")
	case len(st.Comments) == 0:
		b.WriteString(RenderMuted("Loading comments…") + "\n")
	}
	for _, c := range st.Comments {
		v.writeComment(&b, c)
	}

	if st.Name != "" || st.Message != "" {
		b.WriteString("\n" + RenderMuted("draft: ") + st.Name + ": " + st.Message + "\n")
	}

	_, err := io.WriteString(v.Out, b.String())
	return err
}

func (v *FeedView) writeComment(b *strings.Builder, c *model.Comment) {
	b.WriteString(RenderName(SanitizeLine(c.Name)) + "  " + RenderMuted(v.age(c.CreatedAt)) + "\n")
	for _, line := range wrap(SanitizeText(c.Message), v.Width-2) {
		b.WriteString("  " + line + "\n")
	}
}

func (v *FeedView) age(t time.Time) string {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return RelativeTime(now().Sub(t))
}

// RelativeTime formats an elapsed duration the way the board shows comment
// ages ("just now", "5m ago", "3h ago", "2d ago").
func RelativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// wrap breaks s into lines of at most width runes on word boundaries.
// Words longer than width are left whole.
func wrap(s string, width int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		if width <= 0 {
			lines = append(lines, para)
			continue
		}
		var line string
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		lines = append(lines, line)
	}
	return lines
}

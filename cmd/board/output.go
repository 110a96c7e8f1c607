package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printCommentTable(w io.Writer, c *model.Comment) {
	fmt.Fprintf(w, "ID:          %s\n", ui.SanitizeLine(c.ID))
	fmt.Fprintf(w, "Name:        %s\n", ui.SanitizeLine(c.Name))
	fmt.Fprintf(w, "Message:     %s\n", ui.SanitizeText(c.Message))
	fmt.Fprintf(w, "Created At:  %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printCommentListTable(w io.Writer, comments []*model.Comment) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAME\tMESSAGE")
	for _, c := range comments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ui.SanitizeLine(c.ID),
			c.CreatedAt.Format("2006-01-02 15:04"),
			ui.SanitizeLine(c.Name),
			truncate(oneLine(ui.SanitizeText(c.Message)), 60),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d comments\n", len(comments))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// maskToken shows only the first eight characters of a secret.
func maskToken(tok string) string {
	if len(tok) > 8 {
		return tok[:8] + "..."
	}
	return tok
}

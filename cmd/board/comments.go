package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List comments, newest first",
	GroupID: "comments",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		comments, err := boardClient.FetchComments(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing comments: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), comments)
		}
		printCommentListTable(cmd.OutOrStdout(), comments)
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:     "post <name> <message...>",
	Short:   "Post a comment",
	GroupID: "comments",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, message := args[0], strings.Join(args[1:], " ")
		c, err := boardClient.InsertComment(cmd.Context(), name, message)
		if err != nil {
			return fmt.Errorf("posting comment: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		printCommentTable(cmd.OutOrStdout(), c)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Delete a comment (moderation)",
	GroupID: "comments",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := boardClient.DeleteComment(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting comment: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the board service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := boardClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/commentfeed/internal/client"
	"github.com/alfredjeanlab/commentfeed/internal/feed"
	"github.com/alfredjeanlab/commentfeed/internal/model"
	"github.com/alfredjeanlab/commentfeed/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow the board live; lines typed on stdin are posted",
	GroupID: "comments",
	Long: `Follow the board live. The feed is redrawn on every change.

Each line read from stdin is posted as a comment under --name. Commands:
  /name <name>   change the author name
  /retry         reload after a failed load
  /dismiss       clear the error banner
  /quit          exit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		policyName, _ := cmd.Flags().GetString("merge")
		debug, _ := cmd.Flags().GetBool("debug")

		policy, err := parseMergePolicy(policyName)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		notifier, closeNotifier, err := selectNotifier(notifierMode, currentEndpoint, boardClient)
		if err != nil {
			return err
		}
		defer closeNotifier()

		level := slog.LevelError
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		view := &ui.FeedView{
			Out:   cmd.OutOrStdout(),
			Width: ui.Width(os.Stdout, 80),
			Clear: ui.IsTerminal(os.Stdout),
		}
		s := newWatchSession(boardClient, notifier, view, cmd.ErrOrStderr(), name,
			feed.WithLogger(logger), feed.WithMergePolicy(policy))
		defer s.close()

		return s.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	watchCmd.Flags().String("name", os.Getenv("BOARD_NAME"), "author name for posted comments")
	watchCmd.Flags().String("merge", "sorted", "merge policy for new comments (sorted or front)")
	watchCmd.Flags().Bool("debug", false, "log feed diagnostics to stderr")
}

func parseMergePolicy(s string) (feed.MergePolicy, error) {
	switch s {
	case "sorted", "sorted-merge":
		return feed.SortedMerge, nil
	case "front", "front-insert":
		return feed.FrontInsert, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q (must be sorted or front)", s)
	}
}

// selectNotifier picks the insert source for watch. "stream" uses the
// transport's own push channel, "nats" reads the event bus directly and
// "auto" prefers NATS when a URL is known.
func selectNotifier(mode string, ep endpoint, store client.RemoteStore) (client.Notifier, func(), error) {
	noop := func() {}
	switch mode {
	case "stream":
		return store, noop, nil
	case "auto":
		if ep.NATSURL == "" {
			return store, noop, nil
		}
	case "nats":
		if ep.NATSURL == "" {
			return nil, noop, fmt.Errorf("--notifier nats needs a NATS URL (--nats, BOARD_NATS_URL or remote nats_url)")
		}
	default:
		return nil, noop, fmt.Errorf("unknown notifier %q (must be auto, stream or nats)", mode)
	}
	n, err := client.NewNATSNotifier(ep.NATSURL, nats.Name("board-watch"))
	if err != nil {
		return nil, noop, fmt.Errorf("connecting to NATS: %w", err)
	}
	return n, func() { n.Close() }, nil
}

// watchSession ties a synchronizer to a terminal view and a line-based input.
type watchSession struct {
	feed    *feed.Synchronizer
	view    *ui.FeedView
	errOut  io.Writer
	name    string
	pending sync.WaitGroup
}

func newWatchSession(store feed.Store, notifier client.Notifier, view *ui.FeedView, errOut io.Writer, name string, opts ...feed.Option) *watchSession {
	s := &watchSession{view: view, errOut: errOut, name: strings.TrimSpace(name)}
	opts = append(opts, feed.WithOnChange(func(st feed.State) {
		if err := s.view.Render(st); err != nil {
			fmt.Fprintln(s.errOut, "render:", err)
		}
	}))
	s.feed = feed.New(store, notifier, opts...)
	return s
}

// close stops the feed and waits for input handlers still writing to the
// terminal.
func (s *watchSession) close() error {
	err := s.feed.Close()
	s.pending.Wait()
	return err
}

// run starts the feed and processes input until ctx is done or /quit.
// A failed initial load is shown in the view and can be retried.
func (s *watchSession) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.feed.Start(ctx); err != nil && !errors.Is(err, feed.ErrLoadFailed) {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep following until interrupted.
				lines = nil
				continue
			}
			if s.handleLine(ctx, line) {
				return nil
			}
		}
	}
}

// handleLine applies one line of input, reporting whether to quit. Store
// calls run in their own goroutines so pushes keep rendering meanwhile.
func (s *watchSession) handleLine(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/retry":
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			_ = s.feed.Retry(ctx)
		}()
	case line == "/dismiss":
		s.feed.DismissError()
	case strings.HasPrefix(line, "/name"):
		s.name = strings.TrimSpace(strings.TrimPrefix(line, "/name"))
		s.feed.SetName(s.name)
	case strings.HasPrefix(line, "/"):
		fmt.Fprintln(s.errOut, ui.RenderError("unknown command "+line))
	case s.name == "":
		fmt.Fprintln(s.errOut, ui.RenderError("set your name first with /name <name>"))
	default:
		name := s.name
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			err := s.feed.SubmitComment(ctx, name, line)
			var ve *model.ValidationError
			switch {
			case errors.As(err, &ve):
				fmt.Fprintln(s.errOut, ui.RenderError(ve.Error()))
			case errors.Is(err, feed.ErrSubmitInProgress):
				fmt.Fprintln(s.errOut, ui.RenderError("still posting the previous comment"))
			}
		}()
	}
	return false
}

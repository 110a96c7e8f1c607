// Package feed keeps a local, duplicate-free, newest-first view of the
// comment board in sync with a remote store. The view is assembled from a
// bulk load, the caller's own submissions and inserts pushed by a notifier.
//
// A Synchronizer never holds its lock across a store call, so pushes,
// input edits and snapshots proceed while a load or submit is in flight.
// Callers that drive it from an event loop run LoadFeed and SubmitComment
// in their own goroutines and observe results through WithOnChange.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/commentfeed/internal/client"
	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// Store is the part of the remote store contract the feed needs.
type Store interface {
	FetchComments(ctx context.Context) ([]*model.Comment, error)
	InsertComment(ctx context.Context, name, message string) (*model.Comment, error)
}

// State is a point-in-time copy of everything a presentation layer shows.
type State struct {
	// Comments is the feed, newest first, with unique IDs.
	Comments []*model.Comment

	// Name and Message are the held submit form input.
	Name    string
	Message string

	Loaded     bool // at least one load has succeeded
	Loading    bool
	Submitting bool

	// LoadErr and SubmitErr hold the last unacknowledged failure of each kind.
	LoadErr   *Error
	SubmitErr *Error
}

// CanSubmit reports whether the submit control should be enabled.
func (s State) CanSubmit() bool {
	return !s.Submitting && !model.IsBlank(s.Name, s.Message)
}

// CanRetry reports whether a load failure is waiting for a retry.
func (s State) CanRetry() bool {
	return s.LoadErr != nil && !s.Loading
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger for load and submit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithOnChange registers fn to receive a snapshot after every state change.
// Calls are serialized. fn may call Snapshot but must hand any mutating
// call, Close included, off to another goroutine.
func WithOnChange(fn func(State)) Option {
	return func(s *Synchronizer) { s.onChange = fn }
}

// WithMergePolicy selects how pushed and submitted comments are placed.
// The default is SortedMerge.
func WithMergePolicy(p MergePolicy) Option {
	return func(s *Synchronizer) { s.feed.policy = p }
}

// Synchronizer owns one feed. It is safe for concurrent use.
type Synchronizer struct {
	store    Store
	notifier client.Notifier
	logger   *slog.Logger
	onChange func(State)

	// notifyMu orders onChange calls.
	notifyMu sync.Mutex

	mu         sync.Mutex
	feed       *feedList
	name       string
	message    string
	loaded     bool
	loading    int // loads in flight; concurrent loads are allowed
	submitting bool
	loadErr    *Error
	submitErr  *Error
	closed     bool
	sub        client.Subscription

	// arrivals collects comments merged while any load is in flight. A load
	// replaces the feed wholesale, and its snapshot may predate them.
	arrivals []*model.Comment
}

// New returns a Synchronizer reading from and writing to store. notifier
// may be nil, in which case only loads and local submits update the feed.
func New(store Store, notifier client.Notifier, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
		feed:     newFeedList(SortedMerge),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to pushed inserts and then performs the initial load.
// Subscribing first means an insert accepted between the load's snapshot
// and its completion is still delivered. A load failure is recorded in the
// state and returned; the Synchronizer stays usable and Retry may follow.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	needSub := s.notifier != nil && s.sub == nil
	s.mu.Unlock()

	if needSub {
		sub, err := s.notifier.SubscribeInserts(func(c *model.Comment) { s.OnRemoteInsert(c) })
		if err != nil {
			return fmt.Errorf("subscribe to inserts: %w", err)
		}
		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			sub.Unsubscribe()
			return ErrClosed
		case s.sub != nil:
			// A concurrent Start won.
			s.mu.Unlock()
			sub.Unsubscribe()
		default:
			s.sub = sub
			s.mu.Unlock()
		}
	}
	return s.LoadFeed(ctx)
}

// Close unsubscribes from the notifier. Operations still in flight finish,
// but their results are discarded and they return ErrClosed. Close waits for
// a running onChange callback to return, so it must not be called from one.
// Close is idempotent.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.arrivals = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}

	// changed rechecks closed under notifyMu, so once this is acquired no
	// callback can start.
	s.notifyMu.Lock()
	s.notifyMu.Unlock() //nolint:staticcheck // empty critical section is a barrier
	return nil
}

func (s *Synchronizer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LoadFeed fetches every comment and replaces the feed with the result.
// On failure the feed is left as it was, a LoadFailed error is recorded and
// returned.
func (s *Synchronizer) LoadFeed(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading++
	s.mu.Unlock()
	s.changed()

	comments, err := s.store.FetchComments(ctx)

	s.mu.Lock()
	s.loading--
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		if s.loading == 0 {
			s.arrivals = nil
		}
		s.loadErr = &Error{Kind: KindLoad, Err: err}
		loadErr := s.loadErr
		s.mu.Unlock()

		s.logger.Warn("feed load failed", "error", err)
		s.changed()
		return loadErr
	}

	s.feed.replace(comments)
	for _, c := range s.arrivals {
		s.feed.add(c)
	}
	if s.loading == 0 {
		s.arrivals = nil
	}
	s.loadErr = nil
	s.loaded = true
	s.mu.Unlock()

	s.changed()
	return nil
}

// Retry dismisses a recorded load failure and loads again.
func (s *Synchronizer) Retry(ctx context.Context) error {
	s.mu.Lock()
	s.loadErr = nil
	s.mu.Unlock()
	return s.LoadFeed(ctx)
}

// SubmitComment inserts a comment built from name and message, both
// trimmed. If either is empty after trimming it does nothing and returns
// nil. Input over the length limits is rejected with a
// *model.ValidationError before reaching the store.
//
// The given values become the held form input. On success the new comment
// is merged and the input cleared; on failure the feed and input are kept
// and a SubmitFailed error is recorded and returned. While a submit is in
// flight further submits fail with ErrSubmitInProgress.
func (s *Synchronizer) SubmitComment(ctx context.Context, name, message string) error {
	name, message = model.NormalizeInput(name, message)
	if name == "" || message == "" {
		return nil
	}
	if err := model.ValidateNewComment(name, message); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.submitting = true
	s.submitErr = nil
	s.name, s.message = name, message
	s.mu.Unlock()
	s.changed()

	c, err := s.store.InsertComment(ctx, name, message)

	s.mu.Lock()
	s.submitting = false
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err == nil && (c == nil || c.ID == "") {
		err = errors.New("store returned no comment")
	}
	if err != nil {
		s.submitErr = &Error{Kind: KindSubmit, Err: err}
		submitErr := s.submitErr
		s.mu.Unlock()

		s.logger.Warn("comment submit failed", "error", err)
		s.changed()
		return submitErr
	}

	s.mergeLocked(c)
	s.name, s.message = "", ""
	s.mu.Unlock()

	s.changed()
	return nil
}

// Submit submits the held form input.
func (s *Synchronizer) Submit(ctx context.Context) error {
	s.mu.Lock()
	name, message := s.name, s.message
	s.mu.Unlock()
	return s.SubmitComment(ctx, name, message)
}

// OnRemoteInsert merges a pushed comment unless its ID is already in the
// feed, reporting whether it was added. Whichever of a submit and its push
// arrives first wins; the other is absorbed here.
func (s *Synchronizer) OnRemoteInsert(c *model.Comment) bool {
	if c == nil || c.ID == "" {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	added := s.mergeLocked(c)
	s.mu.Unlock()

	if added {
		s.changed()
	}
	return added
}

// mergeLocked adds c to the feed and, while a load is in flight, remembers
// it for re-application after the load replaces the feed.
func (s *Synchronizer) mergeLocked(c *model.Comment) bool {
	if s.loading > 0 {
		s.arrivals = append(s.arrivals, c)
	}
	if !s.feed.add(c) {
		s.logger.Debug("absorbed duplicate comment", "comment_id", c.ID)
		return false
	}
	return true
}

// SetName updates the held author input.
func (s *Synchronizer) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	s.changed()
}

// SetMessage updates the held message input.
func (s *Synchronizer) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
	s.changed()
}

// DismissError clears any recorded load or submit failure.
func (s *Synchronizer) DismissError() {
	s.mu.Lock()
	s.loadErr, s.submitErr = nil, nil
	s.mu.Unlock()
	s.changed()
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Comments:   s.feed.snapshot(),
		Name:       s.name,
		Message:    s.message,
		Loaded:     s.loaded,
		Loading:    s.loading > 0,
		Submitting: s.submitting,
		LoadErr:    s.loadErr,
		SubmitErr:  s.submitErr,
	}
}

func (s *Synchronizer) changed() {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.isClosed() {
		return
	}
	s.onChange(s.Snapshot())
}

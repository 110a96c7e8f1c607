package feed

import "errors"

// Sentinels matched with errors.Is against errors returned by the
// Synchronizer.
var (
	ErrLoadFailed   = errors.New("load failed")
	ErrSubmitFailed = errors.New("submit failed")

	// ErrSubmitInProgress is returned when a submit is attempted while
	// another is still waiting on the store.
	ErrSubmitInProgress = errors.New("submit already in progress")

	// ErrClosed is returned by operations on a closed Synchronizer and by
	// in-flight operations whose result was discarded by Close.
	ErrClosed = errors.New("feed closed")
)

// ErrorKind classifies a recoverable feed failure.
type ErrorKind int

const (
	KindLoad ErrorKind = iota + 1
	KindSubmit
)

func (k ErrorKind) String() string {
	switch k {
	case KindLoad:
		return "LoadFailed"
	case KindSubmit:
		return "SubmitFailed"
	default:
		return "Unknown"
	}
}

// Error wraps a store failure with the feed operation that hit it. Every
// store error, whatever its cause, collapses into one of the two kinds.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.sentinel().Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind sentinel and the underlying store error.
func (e *Error) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	if e.Kind == KindSubmit {
		return ErrSubmitFailed
	}
	return ErrLoadFailed
}

// Package syncerr holds the failure kinds the sync core reports to views.
package syncerr

import (
	"errors"

	"github.com/anonto42/linkup/backend/internal/models"
)

// Kind classifies an expected failure.
type Kind int

const (
	// RemoteReadFailed: an initial load or refetch failed. Views show an empty or error state.
	RemoteReadFailed Kind = iota + 1
	// RemoteWriteFailed: the remote call of an optimistic mutation failed and the cache was rolled back.
	RemoteWriteFailed
	// StaleMount: a result arrived after its consumer unmounted. Never user-visible.
	StaleMount
)

func (k Kind) String() string {
	switch k {
	case RemoteReadFailed:
		return "remote_read_failed"
	case RemoteWriteFailed:
		return "remote_write_failed"
	case StaleMount:
		return "stale_mount"
	}
	return "unknown"
}

// Sentinels for errors.Is.
var (
	ErrRemoteReadFailed  = errors.New("remote read failed")
	ErrRemoteWriteFailed = errors.New("remote write failed")
	ErrStaleMount        = errors.New("stale mount")
)

func (k Kind) sentinel() error {
	switch k {
	case RemoteReadFailed:
		return ErrRemoteReadFailed
	case RemoteWriteFailed:
		return ErrRemoteWriteFailed
	case StaleMount:
		return ErrStaleMount
	}
	return nil
}

// Error carries the kind, the operation and key involved, and the cause.
type Error struct {
	Kind Kind
	Op   string
	Key  models.Key
	Err  error
}

func (e *Error) Error() string {
	msg := "sync error"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Key.ID != "" {
		msg += " (" + e.Key.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// New wraps cause with a kind.
func New(kind Kind, op string, key models.Key, cause error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: cause}
}

// KindOf returns the kind of err, or 0 when err is not a sync error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrRemoteReadFailed):
		return RemoteReadFailed
	case errors.Is(err, ErrRemoteWriteFailed):
		return RemoteWriteFailed
	case errors.Is(err, ErrStaleMount):
		return StaleMount
	}
	return 0
}

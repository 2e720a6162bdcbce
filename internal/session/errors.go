package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotJoined    = errors.New("session is not joined")
	ErrEmptyMessage = errors.New("message has no content")
	ErrNoReceiver   = errors.New("message has no receiver")
	ErrAlreadyOpen  = errors.New("session is already open")
)

type FatalKind int

const (
	// FatalAuth means credentials are missing or expired. The caller goes
	// back to the entry page; there is nothing to retry.
	FatalAuth FatalKind = iota
	// FatalRoom means the room is gone: deleted, kicked, or the transport
	// gave up reconnecting.
	FatalRoom
)

func (k FatalKind) String() string {
	if k == FatalAuth {
		return "auth"
	}
	return "room"
}

// FatalError ends the session. The caller inspects Kind to decide where to
// redirect; no FatalError is retried.
type FatalError struct {
	Kind   FatalKind
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal %s error: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal %s error: %s", e.Kind, e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

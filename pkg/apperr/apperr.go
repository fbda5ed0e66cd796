package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to react without
// string-matching error text.
type Kind int

const (
	// NotFound - message/user/group absent.
	NotFound Kind = iota
	// Forbidden - actor lacks rights (not the sender, blocked, non-admin post).
	Forbidden
	// InvalidState - wrong message type for the operation or terminal state.
	InvalidState
	// Expired - the edit/delete window has elapsed.
	Expired
	// Decryption - ciphertext unreadable; render a placeholder, do not abort.
	Decryption
	// Transient - storage or a backing service is unavailable; safe to retry.
	Transient
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case InvalidState:
		return "invalid_state"
	case Expired:
		return "expired"
	case Decryption:
		return "decryption"
	case Transient:
		return "transient"
	}
	return "unknown"
}

// Error is a structured failure carrying a kind and a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. A nil err returns nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err. Unclassified errors map to Transient, which
// keeps unexpected storage failures on the retryable path.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Transient
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

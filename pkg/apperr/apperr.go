// Package apperr defines the error kinds returned by the exchange core.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound          Kind = "not_found"
	InvalidInput      Kind = "invalid_input"
	Forbidden         Kind = "forbidden"
	InvalidState      Kind = "invalid_state"
	InvalidTransition Kind = "invalid_transition"
	Conflict          Kind = "conflict"
	Unauthenticated   Kind = "unauthenticated"
	Internal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err. Errors that carry no kind are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human readable part of err without the wrapped cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

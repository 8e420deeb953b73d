package core

import (
	"errors"
	"fmt"

	"github.com/eta-study/eta-server/internal/store"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindUpstream
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindUpstream:
		return "upstream failure"
	case KindStorage:
		return "storage failure"
	default:
		return "internal"
	}
}

// Error is the error type returned across the service boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

func Storage(msg string, err error) error {
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// storeError maps store sentinels onto service kinds. what names the missing
// thing in not-found messages.
func storeError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return NotFound("%s not found", what)
	}
	return Storage("failed to access "+what, err)
}

// Package serrors defines the semantic error kinds surfaced by the community
// services. Services return *Error values; callers branch on the kind with
// errors.Is and the HTTP layer maps kinds to status codes.
//
// Multi-step operations (registration, tag deletion, municipality deletion)
// record the step that failed with AtStage so it can be reported without
// exposing the underlying cause.
package serrors

import (
	"errors"
	"fmt"
)

// Kind is a semantic error category. Kinds are sentinels created by NewKind.
type Kind interface {
	error
	isKind()
}

type kind string

func (k kind) Error() string { return string(k) }
func (k kind) isKind()       {}

// NewKind returns a Kind named name. The name doubles as the error code sent
// to API clients, so it should be stable and SCREAMING_SNAKE_CASE.
func NewKind(name string) Kind { return kind(name) }

// Request and access kinds.
var (
	ErrBadRequest   = NewKind("BAD_REQUEST")
	ErrUnauthorized = NewKind("UNAUTHORIZED")
	ErrForbidden    = NewKind("FORBIDDEN")
	ErrRateLimited  = NewKind("RATE_LIMITED")
)

// Entity state kinds.
var (
	ErrNotFound = NewKind("NOT_FOUND")
	// ErrConflict is returned when a unique name, email or event id is taken.
	ErrConflict = NewKind("CONFLICT")
	// ErrNoModification is returned by updates that would not change anything.
	ErrNoModification = NewKind("NO_MODIFICATION")
)

// Failure kinds. ErrCreationFailed and ErrCascadeFailed always come with a
// stage and mean every write of the operation was rolled back.
var (
	ErrCreationFailed = NewKind("CREATION_FAILED")
	ErrCascadeFailed  = NewKind("CASCADE_FAILED")
	ErrInternal       = NewKind("INTERNAL")
	ErrTimeout        = NewKind("TIMEOUT")
	ErrUnavailable    = NewKind("UNAVAILABLE")
)

// Error carries a kind together with an optional cause, message and stage.
// errors.Is and errors.As match both the kind and anything in the cause
// chain.
//
// The error string is "<msg>: <cause>", falling back to whichever of the two
// is set, then to the kind name.
type Error struct {
	kind  Kind
	err   error
	msg   string
	stage string
}

// With returns an error of kind k with a formatted message and no cause.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap returns an error of kind k wrapping err.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// AtStage is Wrap for an operation that failed at the named stage. The stage
// is read back with Stage or StageOf, it is not part of the error string.
func AtStage(k Kind, stage string, err error, msgFmt string, args ...any) *Error {
	e := Wrap(k, err, msgFmt, args...)
	e.stage = stage

	return e
}

// KindOnly returns an error of kind k with neither message nor cause.
func KindOnly(k Kind) *Error { return &Error{kind: k} }

// Internal passes err through when it already has a kind and wraps it as
// ErrInternal otherwise. Services call it on the way out so store faults
// never reach callers untyped. It returns nil for a nil err.
func Internal(err error, msgFmt string, args ...any) error {
	if err == nil || KindOf(err) != nil {
		return err
	}

	return Wrap(ErrInternal, err, msgFmt, args...)
}

// KindOf returns the kind of the outermost *Error in the chain of err, or nil
// when there is none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.kind
	}

	return nil
}

// StageOf returns the first stage recorded in the chain of err, or "".
func StageOf(err error) string {
	for err != nil {
		var se *Error
		if !errors.As(err, &se) {
			return ""
		}
		if se.stage != "" {
			return se.stage
		}
		err = se.err
	}

	return ""
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	case e.kind != nil:
		return e.kind.Error()
	default:
		return "unknown error"
	}
}

func (e *Error) Unwrap() error { return e.err }

// Is matches target against the kind, then against the cause chain.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}

	return (e.kind != nil && errors.Is(e.kind, target)) || (e.err != nil && errors.Is(e.err, target))
}

// As matches target against the kind, then against the cause chain.
func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}

	return (e.kind != nil && errors.As(e.kind, target)) || (e.err != nil && errors.As(e.err, target))
}

func (e *Error) Kind() Kind      { return e.kind }
func (e *Error) Message() string { return e.msg }
func (e *Error) Cause() error    { return e.err }
func (e *Error) Stage() string   { return e.stage }

package services

import (
	"errors"
	"fmt"

	"yardtrack/repository"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindPrecondition ErrorKind = "precondition"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindForbidden    ErrorKind = "forbidden"
)

// Error is the typed failure returned by every service operation. Anything
// that is not an *Error is a persistence or infrastructure failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// storeErr translates repository sentinels into service errors.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	case errors.Is(err, repository.ErrVersionConflict):
		return &Error{Kind: KindConflict, Message: what + " was changed by someone else, reload and retry", Err: err}
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

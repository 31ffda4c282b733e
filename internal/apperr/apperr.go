// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal_error"
)

// Error carries a kind, the human readable messages for the caller and an
// optional cause that is never shown to the caller.
type Error struct {
	Kind     Kind
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msgs ...string) *Error {
	return &Error{Kind: KindValidation, Messages: msgs}
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Messages: []string{msg}}
}

func NotFoundf(format string, args ...any) *Error {
	return NotFound(fmt.Sprintf(format, args...))
}

// Conflict marks transient contention (lock wait timeout, deadlock victim,
// duplicate key). Callers may retry.
func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Messages: []string{msg}, Err: cause}
}

// Forbiddenf rejects an identified caller that may not perform the action.
func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Messages: []string{fmt.Sprintf(format, args...)}}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Messages: []string{"internal server error"}, Err: cause}
}

// KindOf reports the kind of err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessagesOf returns the caller facing messages. Unclassified errors get a
// generic message so internals never leak.
func MessagesOf(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Messages
	}
	return []string{"internal server error"}
}

func Retryable(err error) bool {
	return KindOf(err) == KindConflict
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

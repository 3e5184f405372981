package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable classification of a business-rule failure
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindNotOpen           ErrorKind = "NOT_OPEN"
	KindDeadlinePassed    ErrorKind = "DEADLINE_PASSED"
	KindCapacityReached   ErrorKind = "CAPACITY_REACHED"
	KindNotEligible       ErrorKind = "NOT_ELIGIBLE"
	KindOutOfStock        ErrorKind = "OUT_OF_STOCK"
	KindLockedField       ErrorKind = "LOCKED_FIELD"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindValidationFailed  ErrorKind = "VALIDATION_FAILED"
	KindAlreadyExists     ErrorKind = "ALREADY_EXISTS"
	KindInvalidTicket     ErrorKind = "INVALID_TICKET"
)

// Error is a typed business failure carrying a kind and a human-readable reason
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotOpen           = &Error{Kind: KindNotOpen}
	ErrDeadlinePassed    = &Error{Kind: KindDeadlinePassed}
	ErrCapacityReached   = &Error{Kind: KindCapacityReached}
	ErrNotEligible       = &Error{Kind: KindNotEligible}
	ErrOutOfStock        = &Error{Kind: KindOutOfStock}
	ErrLockedField       = &Error{Kind: KindLockedField}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists}
	ErrInvalidTicket     = &Error{Kind: KindInvalidTicket}
)

// Fail builds a failure of the sentinel's kind with a formatted reason.
func Fail(sentinel *Error, format string, args ...interface{}) error {
	return &Error{Kind: sentinel.Kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a business failure, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

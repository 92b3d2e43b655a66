package challenge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind categorizes domain errors.
type ErrorKind string

const (
	// KindValidation marks malformed input: templates, options, event shape.
	KindValidation ErrorKind = "VALIDATION"

	// KindNotFound marks an unknown challenge, participant or user.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindStateConflict marks an operation the current state forbids:
	// not active, full, already joined, team full, write after completion.
	KindStateConflict ErrorKind = "STATE_CONFLICT"

	// KindConcurrencyConflict marks a stale write rejected by the store.
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
)

// Error is the domain error type.
//
// Error carries a machine-readable Kind plus optional Details for
// diagnostics. Two errors match under errors.Is when their kinds match, so
// callers can compare against the Err* sentinels.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Details contains additional context (challenge id, user id, ...).
	Details map[string]string

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrStateConflict       = &Error{Kind: KindStateConflict}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Details[k])
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// Validation creates a KindValidation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound creates a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// StateConflict creates a KindStateConflict error.
func StateConflict(message string) *Error {
	return &Error{Kind: KindStateConflict, Message: message}
}

// ConcurrencyConflict creates a KindConcurrencyConflict error.
func ConcurrencyConflict(message string) *Error {
	return &Error{Kind: KindConcurrencyConflict, Message: message}
}

// KindOf returns the ErrorKind of err, or "" when err is not a domain error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsStateConflict returns true if err is a state conflict.
func IsStateConflict(err error) bool { return KindOf(err) == KindStateConflict }

// IsConcurrencyConflict returns true if err is an optimistic version mismatch.
func IsConcurrencyConflict(err error) bool { return KindOf(err) == KindConcurrencyConflict }

// Package apperr defines the error kinds surfaced to users of TradeLens and
// the mapping from each kind to a single human-readable message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and presentation.
type Kind string

const (
	KindConfiguration Kind = "configuration"  // missing credential, engine not initialised
	KindAIUnavailable Kind = "ai_unavailable" // no reasoning engine registered
	KindValidation    Kind = "validation"     // malformed external response or bad input
	KindTransient     Kind = "transient"      // rate limit or network failure
	KindPersistence   Kind = "persistence"    // store read/write failure
	KindDuplicate     Kind = "duplicate"      // informational, never fatal
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict" // an analysis is already running
	KindUnknown       Kind = "unknown"
)

// Error is a classified error. Message is safe to show to a user; Err keeps
// the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, apperr.Transient)
// works against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	Configuration = &Error{Kind: KindConfiguration}
	AIUnavailable = &Error{Kind: KindAIUnavailable}
	Validation    = &Error{Kind: KindValidation}
	Transient     = &Error{Kind: KindTransient}
	Persistence   = &Error{Kind: KindPersistence}
	Duplicate     = &Error{Kind: KindDuplicate}
	NotFound      = &Error{Kind: KindNotFound}
	Conflict      = &Error{Kind: KindConflict}
	Unknown       = &Error{Kind: KindUnknown}
)

// New creates a classified error.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Newf creates a classified error with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the message to show for err. Unclassified errors
// forward their own text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConfiguration, KindAIUnavailable:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDuplicate:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

package ragdomain

import (
	"errors"
	"fmt"
)

// ErrKind names the contract an error carries, per the error handling design:
// propagation, retry budget, and terminal-vs-surfaced behavior all key off it.
type ErrKind string

const (
	KindNotFound        ErrKind = "not_found"
	KindAlreadyExists   ErrKind = "already_exists"
	KindUnsupportedType ErrKind = "unsupported_type"
	KindParseError      ErrKind = "parse_error"
	KindEmptyContent    ErrKind = "empty_content"
	KindSchemaMismatch  ErrKind = "schema_mismatch"
	KindModelError      ErrKind = "model_error"
	KindTransportError  ErrKind = "transport_error"
	KindInvalidQuery    ErrKind = "invalid_query"
	KindRetrievalError  ErrKind = "retrieval_error"
	KindCancelled       ErrKind = "cancelled"
)

// Error is the single error type carried across component boundaries. Kind
// drives retry/propagation policy; Op names the failing operation or step;
// Err is the wrapped underlying error, if any.
type Error struct {
	Kind ErrKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, SomeKindError) work by comparing Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind ErrKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf extracts the Kind of err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether TaskRunner should schedule a redelivery rather
// than terminating the document in error, per the retry budget in §7.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransportError, KindModelError:
		return true
	default:
		return false
	}
}

// Sentinel instances for errors.Is checks against a bare kind, e.g.
// errors.Is(err, ErrNotFound).
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrUnsupportedType = &Error{Kind: KindUnsupportedType}
	ErrParseError      = &Error{Kind: KindParseError}
	ErrEmptyContent    = &Error{Kind: KindEmptyContent}
	ErrSchemaMismatch  = &Error{Kind: KindSchemaMismatch}
	ErrModelError      = &Error{Kind: KindModelError}
	ErrTransportError  = &Error{Kind: KindTransportError}
	ErrInvalidQuery    = &Error{Kind: KindInvalidQuery}
	ErrRetrievalError  = &Error{Kind: KindRetrievalError}
	ErrCancelled       = &Error{Kind: KindCancelled}
)

// Truncate bounds an error message for storage on DocumentRecord.error_message.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// Package errs defines the error kinds used throughout the orchestrator:
// callers distinguish failure handling by Kind rather than by
// concrete type, and every user-visible failure carries both a short human
// line and a machine-readable Kind.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation-policy decisions.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConnection Kind = "connection"
	KindTimeout Kind = "timeout"
	KindFileNotFound Kind = "file_not_found"
	KindPermission Kind = "permission"
	KindSubprocess Kind = "subprocess"
	KindAPIError Kind = "api_error"
	KindToolError Kind = "tool_error"
	KindProcessError Kind = "process_error"
)

// Error wraps a cause with a Kind and a short human-facing message.
type Error struct {
	Kind Kind
	Message string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.KindTimeout)-style matching against a bare
// Kind value wrapped as an error via KindError.
func (e *Error) Is(target error) bool {
	var k *kindSentinel
	if errors.As(target, &k) {
		return e.Kind == k.kind
	}
	return false
}

type kindSentinel struct{ kind Kind }

func (k *kindSentinel) Error() string { return string(k.kind) }

// KindError returns a sentinel error usable with errors.Is to test a Kind,
// e.g. errors.Is(err, errs.KindError(errs.KindTimeout)).
func KindError(k Kind) error { return &kindSentinel{kind: k} }

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

func Validation(msg string, cause error) error { return newErr(KindValidation, msg, cause) }
func Connection(msg string, cause error) error { return newErr(KindConnection, msg, cause) }
func Timeout(msg string, cause error) error { return newErr(KindTimeout, msg, cause) }
func FileNotFound(msg string, cause error) error { return newErr(KindFileNotFound, msg, cause) }
func Permission(msg string, cause error) error { return newErr(KindPermission, msg, cause) }
func Subprocess(msg string, cause error) error { return newErr(KindSubprocess, msg, cause) }
func APIError(msg string, cause error) error { return newErr(KindAPIError, msg, cause) }
func ToolError(msg string, cause error) error { return newErr(KindToolError, msg, cause) }
func ProcessError(msg string, cause error) error { return newErr(KindProcessError, msg, cause) }

// KindOf extracts the Kind from err, if it (or something it wraps) is an
// *Error. Returns ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

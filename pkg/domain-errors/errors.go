// Package domainerrors defines the coded error taxonomy shared by services and
// transports. Services return these; the HTTP layer maps codes to status codes
// and serializes the message plus metadata for operator-facing output.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Codes are stable strings so they can be
// matched by callers and asserted in tests without string-matching messages.
type Code string

const (
	// CodeInvalidInput marks malformed external input (bad UUID, unknown enum).
	CodeInvalidInput Code = "invalid_input"

	// CodeValidation marks a missing or inconsistent field required by a
	// transition (e.g. no reschedule date when reason is Reschedule). Recovered
	// locally by the caller; never reaches persisted state.
	CodeValidation Code = "validation"

	// CodePrecondition marks a transition attempted from a state that does not
	// permit it. No partial mutation occurs.
	CodePrecondition Code = "precondition_failed"

	// CodeLocation marks a device, permission, or timeout failure while
	// sampling a live position. Recoverable via retry; never treated as a pass.
	CodeLocation Code = "location_unavailable"

	// CodeReconciliation marks a Visit that was created while the originating
	// request update failed. Surfaced distinctly so operators retry the request
	// update instead of creating a duplicate Visit.
	CodeReconciliation Code = "reconciliation"

	// CodeConflict marks a retryable concurrency conflict: the officer
	// exclusivity check or a stale-state transition. Callers should refetch and
	// re-decide.
	CodeConflict Code = "conflict"

	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
)

// Error carries a code, an operator-facing message, and optional metadata
// (visit id, attempted transition, current state).
type Error struct {
	Code    Code
	Message string
	Meta    map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With attaches a metadata key/value and returns the same error for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
	return e
}

// HasCode reports whether err is (or wraps) a domain error with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for plain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to its transport status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodePrecondition, CodeConflict:
		return http.StatusConflict
	case CodeLocation:
		return http.StatusServiceUnavailable
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr classifies failures surfaced by the controller so that every
// caller (HTTP handlers, the poller, tests) can branch on a small fixed set of
// kinds instead of matching error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind string

const (
	// Busy means another mutating command holds the operation lock.
	Busy Kind = "busy"
	// InvalidArgument means the request was malformed; the device was not contacted.
	InvalidArgument Kind = "invalid_argument"
	// Conflict means a uniquely named resource already exists.
	Conflict Kind = "conflict"
	// NotFound means the named resource does not exist.
	NotFound Kind = "not_found"
	// DeviceUnreachable means the transport to the device failed.
	DeviceUnreachable Kind = "device_unreachable"
	// DeviceRejected means the device answered with a domain-level failure.
	DeviceRejected Kind = "device_rejected"
	// Timeout means the local wait for a device answer expired. The device-side
	// effect may still happen.
	Timeout Kind = "timeout"
	// Internal covers everything that is not one of the kinds above.
	Internal Kind = "internal"
)

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, apperr.ErrBusy) works for
// any Busy error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrBusy              = &Error{Kind: Busy}
	ErrInvalidArgument   = &Error{Kind: InvalidArgument}
	ErrConflict          = &Error{Kind: Conflict}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrDeviceUnreachable = &Error{Kind: DeviceUnreachable}
	ErrDeviceRejected    = &Error{Kind: DeviceRejected}
	ErrTimeout           = &Error{Kind: Timeout}
)

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain, or
// Internal for unclassified errors. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the human readable message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps a kind onto the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Busy:
		return http.StatusLocked
	case InvalidArgument:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case DeviceUnreachable:
		return http.StatusBadGateway
	case DeviceRejected:
		return http.StatusUnprocessableEntity
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

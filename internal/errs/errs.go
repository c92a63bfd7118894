package errs

import (
	"errors"
	"fmt"
	"math"
	"net/http"
)

// Kind classifies an error for callers that must decide how to surface it
type Kind int

const (
	// KindInfrastructure is a store or transport failure unrelated to the request content
	KindInfrastructure Kind = iota
	// KindValidation is bad or missing input
	KindValidation
	// KindPolicy is a rule violation such as a proximity or duplicate rejection
	KindPolicy
	// KindProvisioning is a failed container auto-creation
	KindProvisioning
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPolicy:
		return "policy"
	case KindProvisioning:
		return "provisioning"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "infrastructure"
	}
}

// HTTPStatus maps the kind to the status code returned to clients
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindPolicy, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type surfaced by the signal and container services
type Error struct {
	Kind    Kind
	Message string
	// Distance is the rounded reporter-to-container distance for proximity rejections
	Distance *int
	// SignalID identifies the conflicting signal for duplicate rejections
	SignalID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a 400-class error
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a 404-class error
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden returns a 403-class error for failed authorization
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// TooFar rejects a report filed further than maxMeters from its container
func TooFar(distance, maxMeters float64) *Error {
	rounded := int(math.Round(distance))
	return &Error{
		Kind: KindPolicy,
		Message: fmt.Sprintf("You must be within %s meters of the container to report a signal. Current distance: %dm",
			formatMeters(maxMeters), rounded),
		Distance: &rounded,
	}
}

// Duplicate rejects a second open report against the same container
func Duplicate(signalID string) *Error {
	msg := "Signal for same object already exists."
	if signalID != "" {
		msg = fmt.Sprintf("Signal for same object already exists. Signal ID: %s", signalID)
	}
	return &Error{Kind: KindPolicy, Message: msg, SignalID: signalID}
}

// Provisioning reports a failed container auto-creation
func Provisioning(err error) *Error {
	return &Error{Kind: KindProvisioning, Message: "failed to create new waste container", Err: err}
}

// Infrastructure wraps a store or transport failure
func Infrastructure(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: message, Err: err}
}

// KindOf returns the kind of err, treating unknown errors as infrastructure failures
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// IsRequestError reports whether err was caused by the request itself
// rather than by the infrastructure serving it.
func IsRequestError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind != KindInfrastructure
}

func formatMeters(m float64) string {
	if m == math.Trunc(m) {
		return fmt.Sprintf("%d", int(m))
	}
	return fmt.Sprintf("%.1f", m)
}

package telemetry

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the class of an acquisition failure.
//
// Kinds are stable strings so they can be used as log attributes and metric
// labels.
type ErrorKind string

const (
	// KindTransport is a network, connection or timeout failure reaching the bridge.
	KindTransport ErrorKind = "transport"

	// KindUnexpectedStatus is a non-200 HTTP response.
	KindUnexpectedStatus ErrorKind = "unexpected_status"

	// KindMissingField is a payload that parsed but lacks a required field.
	KindMissingField ErrorKind = "missing_field"

	// KindInvalidField is a required field with the wrong type or range.
	KindInvalidField ErrorKind = "invalid_field"

	// KindUnknownStatus is a status code outside the known device states.
	KindUnknownStatus ErrorKind = "unknown_status"
)

// Sentinels for errors.Is matching against an [*Error] of the same kind.
var (
	ErrTransport        = errors.New("source unreachable")
	ErrUnexpectedStatus = errors.New("unexpected http status")
	ErrMissingField     = errors.New("missing field")
	ErrInvalidField     = errors.New("invalid field")
	ErrUnknownStatus    = errors.New("unknown status code")
)

// Error is a typed acquisition failure.
//
// Field is set for missing/invalid field errors, Code for unexpected HTTP
// statuses and unknown device codes. Err carries the underlying cause when
// there is one.
type Error struct {
	Kind  ErrorKind
	Field string
	Code  int
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		if e.Err != nil {
			return fmt.Sprintf("source unreachable: %v", e.Err)
		}
		return "source unreachable"
	case KindUnexpectedStatus:
		return fmt.Sprintf("data source returned a response of code %d", e.Code)
	case KindMissingField:
		return fmt.Sprintf("following field is not present: %s", e.Field)
	case KindInvalidField:
		if e.Err != nil {
			return fmt.Sprintf("field %s is invalid: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("field %s is invalid", e.Field)
	case KindUnknownStatus:
		return fmt.Sprintf("unrecognised status code %d", e.Code)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUnexpectedStatus:
		return e.Kind == KindUnexpectedStatus
	case ErrMissingField:
		return e.Kind == KindMissingField
	case ErrInvalidField:
		return e.Kind == KindInvalidField
	case ErrUnknownStatus:
		return e.Kind == KindUnknownStatus
	}
	return false
}

// TransportError wraps a failure to reach the bridge.
func TransportError(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

// UnexpectedStatus reports a non-200 HTTP status code.
func UnexpectedStatus(code int) *Error {
	return &Error{Kind: KindUnexpectedStatus, Code: code}
}

// MissingField reports the first absent required field.
// "root" means the body was not a JSON object at all.
func MissingField(name string) *Error {
	return &Error{Kind: KindMissingField, Field: name}
}

// InvalidField reports a present field that cannot be used.
func InvalidField(name string, cause error) *Error {
	return &Error{Kind: KindInvalidField, Field: name, Err: cause}
}

// UnknownStatus reports a status code outside the known device states.
func UnknownStatus(code int) *Error {
	return &Error{Kind: KindUnknownStatus, Code: code}
}

// KindOf returns the [ErrorKind] of err, or "" if err is not an [*Error].
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

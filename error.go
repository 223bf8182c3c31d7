package wirebind

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidArgument is returned when a nil or otherwise unusable
// value is handed to a marshalling entry point. Check for it with
// errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// TypeError is the error returned when a Go type or a hand-built
// Shape cannot be bound to the wire.
type TypeError struct {
	// Type is the name of the Go type that caused the error. It is
	// empty when the error is in a hand-built Shape.
	Type string
	// Reason is an explanation of why the type can't be bound.
	Reason error
}

func (e TypeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("invalid wire binding: %s", e.Reason)
	}
	return fmt.Sprintf("wirebind cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := ""
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}

// MarshalError is the error returned when a value cannot be rendered
// into a request.
type MarshalError struct {
	// Field is the wire name of the field being marshalled, or "" if
	// the failure isn't tied to one field.
	Field string
	// Reason is the underlying failure.
	Reason error
}

func (e MarshalError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unable to marshal request: %s", e.Reason)
	}
	return fmt.Sprintf("unable to marshal field %s: %s", e.Field, e.Reason)
}

func (e MarshalError) Unwrap() error {
	return e.Reason
}

func marshalErr(field, reason string, args ...any) error {
	return MarshalError{field, fmt.Errorf(reason, args...)}
}

// ParseError is the error returned when a response cannot be decoded.
type ParseError struct {
	// Field is the wire name of the field being decoded, or "" if the
	// failure isn't tied to one field.
	Field string
	// Reason is the underlying failure.
	Reason error
}

func (e ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unable to parse response: %s", e.Reason)
	}
	return fmt.Sprintf("unable to parse field %s: %s", e.Field, e.Reason)
}

func (e ParseError) Unwrap() error {
	return e.Reason
}

func parseErr(field string, reason error) error {
	// Don't double-wrap when an inner field has already reported.
	var pe ParseError
	if errors.As(reason, &pe) {
		return reason
	}
	return ParseError{field, reason}
}

// Package types holds the semantic scalar types shared by contracts and records.
// Every Parse function is pure: it coerces where that is legitimate, validates,
// and returns a *Error describing why a value was rejected.
package types

import (
	"errors"
	"fmt"
)

// Kind classifies why a value was rejected.
type Kind uint8

const (
	InvalidFormat Kind = iota + 1
	OutOfRange
	NotInEnum
	UnparsableDateTime
)

func (k Kind) String() string {
	switch k {
	case InvalidFormat:
		return "invalid_format"
	case OutOfRange:
		return "out_of_range"
	case NotInEnum:
		return "not_in_enum"
	case UnparsableDateTime:
		return "unparsable_datetime"
	default:
		return "unknown"
	}
}

// Error is returned by every Parse function in this package.
type Error struct {
	Kind    Kind
	Value   any
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, value any, format string, args ...any) *Error {
	return &Error{Kind: kind, Value: value, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or 0 when err is not a *Error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// Package errs defines the error taxonomy shared by the crev client core.
//
// Every failure that reaches a command is an *Error carrying a Kind and a
// message that can be shown to the user as-is.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by where it originated.
type Kind int

const (
	// KindUnknown is reported for errors that are not *Error.
	KindUnknown Kind = iota
	// KindValidation is a local check that failed before any network call.
	KindValidation
	// KindAuth means the server rejected the credentials or the session.
	KindAuth
	// KindConnectivity means no response reached the client.
	KindConnectivity
	// KindServer is a non-2xx response that is not an auth failure.
	KindServer
	// KindBusy means the same operation is already in flight.
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConnectivity:
		return "connectivity"
	case KindServer:
		return "server"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is a classified, displayable failure.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was received
	Message string
	Detail  string // message supplied by the server, if any
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailOf returns the server-supplied message carried by err, or "".
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Auth(status int, msg string) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: msg}
}

func Connectivity(msg string, err error) *Error {
	return &Error{Kind: KindConnectivity, Message: msg, Err: err}
}

func Server(status int, msg string) *Error {
	return &Error{Kind: KindServer, Status: status, Message: msg}
}

func Busy(op string) *Error {
	return &Error{Kind: KindBusy, Message: fmt.Sprintf("a %s is already in progress", op)}
}

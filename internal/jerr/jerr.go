// Package jerr defines the stable error kinds shared across Jarvis's
// components (§7 of the spec: propagation policy and surfaced-to-caller
// errors key off these, not off Go types).
package jerr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error classification. Components never
// define their own ad-hoc error kinds; every failure that crosses a
// component boundary is wrapped in one of these.
type Kind string

const (
	BadArgs         Kind = "BadArgs"
	NotFound        Kind = "NotFound"
	Duplicate       Kind = "Duplicate"
	Unavailable     Kind = "Unavailable"
	RateLimited     Kind = "RateLimited"
	Auth            Kind = "Auth"
	Timeout         Kind = "Timeout"
	Cancelled       Kind = "Cancelled"
	ExternalTool    Kind = "ExternalTool"
	Backend         Kind = "Backend"
	Invariant       Kind = "Invariant"
	BadKey          Kind = "BadKey"
	NoAgent         Kind = "NoAgent"
	PeerUnreachable Kind = "PeerUnreachable"
	SlowConsumer    Kind = "SlowConsumer"
	Server          Kind = "Server"
)

// Error carries a Kind plus component/operation context so that callers can
// both branch on Kind and print a useful message (§7: "all other errors are
// returned to the caller verbatim with context").
type Error struct {
	Kind          Kind
	Component     string
	Op            string
	CorrelationID string
	Message       string
	Err           error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Component == "" && e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s.%s: %s", e.Kind, e.Component, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with the given kind and message.
func New(kind Kind, component, op, message string) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Message: message}
}

// Wrap attaches a Kind and component/operation context to an existing error.
func Wrap(kind Kind, component, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Op: op, Err: err}
}

// Of reports the Kind of err, or "" if err does not carry one.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}

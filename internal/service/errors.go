package service

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the preferences flow can produce. The set
// is closed; the HTTP boundary maps each kind to exactly one status code.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindInvalidInput
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidInput:
		return "invalid_input"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Error is the typed result returned by the service.
type Error struct {
	Kind    Kind
	Field   string // offending wire field, invalid input only
	Message string // client-facing message
	Err     error  // underlying cause, persistence only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthenticated is returned when no identity was resolved.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Not authenticated"}
}

// InvalidInput names the field that failed validation; field is empty for
// a body that is not a JSON object at all.
func InvalidInput(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: msg}
}

// Persistence wraps a storage or decode failure. The client message is the
// cause's text, or fallback when there is no cause.
func Persistence(fallback string, err error) *Error {
	msg := fallback
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf extracts the kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

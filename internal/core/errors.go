package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures that cross a package boundary. The string
// values are the ones reported to API clients.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation_error"
	KindNotFound     ErrorKind = "not_found"
	KindStore        ErrorKind = "store_error"
	KindAttachment   ErrorKind = "attachment_error"
	KindUnauthorized ErrorKind = "unauthorized"
)

// Error is the structured error returned by services and stores.
type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Row     int
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" (row %d)", e.Row)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input on a field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NotFound reports an id that does not exist or is owned by someone else.
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// StoreFailure wraps a backing store error.
func StoreFailure(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: op + " failed", Err: err}
}

// AttachmentFailure wraps an object storage error.
func AttachmentFailure(op string, err error) *Error {
	return &Error{Kind: KindAttachment, Message: op + " failed", Err: err}
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

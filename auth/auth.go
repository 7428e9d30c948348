// Package auth holds the result and error vocabulary shared by the
// directory and session components.
package auth

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without string matching.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConnection Kind = "connection"
	KindBind       Kind = "bind"
	KindSearch     Kind = "search"
	KindModify     Kind = "modify"
	KindNotFound   Kind = "not_found"
	KindMarshal    Kind = "marshal"
	KindUnknown    Kind = "unknown"
)

// Error carries the failed operation, its kind, and a message that is safe
// to log: constructors must never place credentials in Message.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "validate_user"
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	}
	return e.Op + ": " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error. The cause may be nil.
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// KindOf reports the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err represents a missing directory entry.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsValidation reports whether err was raised before any I/O was attempted.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// Result is the uniform shape returned across the operation boundary.
// Request-handling callers branch on Error instead of catching faults.
type Result struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// OK returns a success result.
func OK() Result {
	return Result{}
}

// Fail returns a failure result carrying a message safe to log and to
// show in diagnostics. Never pass credential material in.
func Fail(message string) Result {
	return Result{Error: true, Message: message}
}

// FromError converts an error into the uniform result shape.
func FromError(err error) Result {
	if err == nil {
		return OK()
	}
	return Fail(err.Error())
}

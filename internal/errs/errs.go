package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindStore         Kind = "store"
	KindCredential    Kind = "credential"
	KindAuthorization Kind = "authorization"
	KindExport        Kind = "export"
)

// Error carries a machine kind, an internal message and a short
// user-facing message suitable for a chat reply.
type Error struct {
	Kind        Kind
	Message     string
	UserMessage string
	cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func Validation(msg string) *Error {
	return &Error{
		Kind:        KindValidation,
		Message:     msg,
		UserMessage: msg,
	}
}

func Store(cause error) *Error {
	return &Error{
		Kind:        KindStore,
		Message:     "store operation failed",
		UserMessage: "Temporary storage problem, try again.",
		cause:       cause,
	}
}

func Credential(msg string, cause error) *Error {
	return &Error{
		Kind:        KindCredential,
		Message:     msg,
		UserMessage: msg,
		cause:       cause,
	}
}

func Authorization() *Error {
	return &Error{
		Kind:        KindAuthorization,
		Message:     "caller is not an admin",
		UserMessage: "Not authorized.",
	}
}

func Export(msg string, cause error) *Error {
	return &Error{
		Kind:        KindExport,
		Message:     msg,
		UserMessage: "Export/import failed: " + msg,
		cause:       cause,
	}
}

// IsKind reports whether err (or anything it wraps) is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// UserMessage extracts the chat-safe message, falling back to a generic one.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.UserMessage != "" {
		return e.UserMessage
	}
	return "Something went wrong, try again later."
}

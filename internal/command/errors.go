package command

import "errors"

// Kind classifies an executor failure.
type Kind string

const (
	KindInvalidRange    Kind = "InvalidRange"
	KindTextNotFound    Kind = "TextNotFound"
	KindInvalidArgument Kind = "InvalidArgument"
	KindUnknownCommand  Kind = "UnknownCommand"
)

// Error is the only error type Execute and Parse return.
// Message is user-facing and goes straight into the chat reply.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of err, or "" if err is not a command error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsValidation reports whether err is a bad range, missing text or bad argument.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidRange, KindTextNotFound, KindInvalidArgument:
		return true
	}
	return false
}

// IsUnknownCommand reports whether err names a command the executor does not know.
func IsUnknownCommand(err error) bool {
	return KindOf(err) == KindUnknownCommand
}

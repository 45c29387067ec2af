package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindPersistence Kind = "persistence"
)

// Error carries the failure taxonomy surfaced by the service layer.
// Validation and Conflict are caller mistakes, NotFound is a missing
// entity, Persistence is a store failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Persistence(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}

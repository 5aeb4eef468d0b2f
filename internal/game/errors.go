package game

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure. Every public operation returns a plain
// result-or-error; expected business conditions are typed, never panics.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInsufficient Kind = "insufficient_resources"
	KindNotEligible  Kind = "not_eligible"
	KindUnavailable  Kind = "external_unavailable"
	KindInternal     Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Insufficientf(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficient, Message: fmt.Sprintf(format, args...)}
}

func NotEligiblef(format string, args ...any) *Error {
	return &Error{Kind: KindNotEligible, Message: fmt.Sprintf(format, args...)}
}

func Unavailablef(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, defaulting to internal for untyped
// errors so no accidental detail crosses the boundary.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

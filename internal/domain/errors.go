package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures so callers can tell malformed input from
// missing records, illegal transitions and broken invariants.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindExistence  ErrorKind = "existence"
	KindPrivilege  ErrorKind = "privilege"
	KindFatal      ErrorKind = "fatal"
)

var (
	ErrMissingID        = errors.New("entity has no id")
	ErrMissingSegmentID = errors.New("entity has no segment id")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrChainNotFound    = errors.New("chain not found")
	ErrEmptyBag         = errors.New("marble bag is empty")
	ErrNoMainChoice     = errors.New("no main program choice found in retrospective")
)

// Error is the single tagged error type returned across the engine.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(format string, args ...any) error {
	return newError(KindValidation, nil, format, args...)
}

func Existencef(format string, args ...any) error {
	return newError(KindExistence, nil, format, args...)
}

func Privilegef(format string, args ...any) error {
	return newError(KindPrivilege, nil, format, args...)
}

func Fatalf(format string, args ...any) error {
	return newError(KindFatal, nil, format, args...)
}

// Wrap tags an existing error (usually one of the sentinels) with a kind.
func Wrap(kind ErrorKind, err error, format string, args ...any) error {
	return newError(kind, err, format, args...)
}

// KindOf returns the kind of the first tagged error in the chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsExistence(err error) bool  { return KindOf(err) == KindExistence }
func IsPrivilege(err error) bool  { return KindOf(err) == KindPrivilege }
func IsFatal(err error) bool      { return KindOf(err) == KindFatal }

// TransitionError reports an attempted state change outside the allowed set.
func TransitionError[S ~string](to S, allowed []S) error {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return Privilegef("transition to %s not in allowed (%s)", to, strings.Join(names, ","))
}

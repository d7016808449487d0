package game

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine readable class of an error crossing a
// component boundary.
type ErrorKind string

const (
	ErrPlayerNotFound        ErrorKind = "PLAYER_NOT_FOUND"
	ErrInsufficientFunds     ErrorKind = "INSUFFICIENT_FUNDS"
	ErrInvalidState          ErrorKind = "INVALID_STATE"
	ErrAIOffline             ErrorKind = "AI_OFFLINE"
	ErrAITimeout             ErrorKind = "AI_TIMEOUT"
	ErrJSONParseFailed       ErrorKind = "JSON_PARSE_FAILED"
	ErrIntegrityViolation    ErrorKind = "INTEGRITY_VIOLATION"
	ErrVerificationRejected  ErrorKind = "VERIFICATION_REJECTED"
	ErrVerificationUncertain ErrorKind = "VERIFICATION_UNCERTAIN"
	ErrInvalidArgument       ErrorKind = "INVALID_ARGUMENT"
	ErrInternal              ErrorKind = "INTERNAL"
)

type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so errors.Is(err,
// &Error{Kind: ErrAITimeout}) works through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or
// ErrInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsAIFailure reports whether err is one of the LLM gateway terminal errors.
func IsAIFailure(err error) bool {
	switch KindOf(err) {
	case ErrAIOffline, ErrAITimeout, ErrJSONParseFailed:
		return true
	}
	return false
}

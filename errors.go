package grocer

import (
	"errors"
)

var (
	ErrNotFound            = errors.New("the requested entity could not be found")
	ErrDB                  = errors.New("an error occured with the DB")
	ErrUnavailable         = errors.New("the DB could not be reached")
	ErrBadArgument         = errors.New("one or more of the arguments is invalid")
	ErrBodyUnmarshal       = errors.New("malformed data in request")
	ErrConstraintViolation = errors.New("a constraint was violated")
)

// Error is a typed error returned by grocer functions as their error value. It
// contains both a message explaining what happened as well as one or more
// error values it considers to be its causes. Calling errors.Is on an Error
// along with any of its causes returns true, so callers can check failure
// conditions without typecasting.
//
// If Error has at least one cause defined, the result of calling Error.Error()
// will be its primary message with the result of calling Error() on its first
// cause appended to it. If it has no message, only the first cause's message is
// returned; this is how driver messages are passed through unmodified.
//
// Error should not be used directly; call NewError to create one.
type Error struct {
	msg   string
	cause []error
}

// Error returns the message defined for the Error. If a message was defined for
// it when created, that message is returned, concatenated with the result of
// calling Error() on the its first cause if one is defined. If no message or an
// empty message was defined for it when created, but there is at least one
// cause defined for it, the result of calling Error() on the first cause is
// returned. If no message is defined and no causes are defined, returns the
// empty string.
func (e Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause[0].Error()
	}

	if e.cause != nil {
		return e.msg + ": " + e.cause[0].Error()
	}

	return e.msg
}

// Message returns only the message of the Error, without any of its causes'
// text appended. If it has no message, the first cause's text is returned
// instead, the same as for Error().
func (e Error) Message() string {
	if e.msg == "" && len(e.cause) > 0 {
		return e.cause[0].Error()
	}
	return e.msg
}

// Unwrap returns the causes of Error. The return value will be nil if no causes
// were defined for it.
func (e Error) Unwrap() []error {
	if len(e.cause) > 0 {
		return e.cause
	}
	return nil
}

// Is returns whether target is an Error with the same message and no causes.
// Matching against causes is left to errors.Is, which walks Unwrap.
func (e Error) Is(target error) bool {
	var errTarget Error
	switch t := target.(type) {
	case Error:
		errTarget = t
	case *Error:
		if t == nil {
			return false
		}
		errTarget = *t
	default:
		return false
	}

	return len(errTarget.cause) == 0 && e.msg != "" && e.msg == errTarget.msg
}

// NewError creates a new Error with the given message, along with any errors it
// should wrap as its causes. Providing cause errors is not required, but will
// cause it to return true when it is checked against that error via a call to
// errors.Is.
func NewError(msg string, causes ...error) Error {
	err := Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}

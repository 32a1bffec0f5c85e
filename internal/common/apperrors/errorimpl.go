package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg        string
	base       error   // parent, for errors.Is
	attached   []error // errors added with Err / MsgErr
	statusCode int
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll joins the message with every attached error that is not part of the
// receiver's own ancestry.
func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.attached {
		if _, ok := err.(*appError); ok {
			continue
		}
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statusCode: e.statusCode,
	}
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:        msg,
		base:       e,
		attached:   append(append([]error{}, e.attached...), errs...),
		statusCode: e.statusCode,
	}
}

func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:        e.msg,
		base:       e,
		attached:   append(append([]error{}, e.attached...), errs...),
		statusCode: e.statusCode,
	}
}

// SetStatusCode returns a child so the receiver stays matchable with errors.Is.
func (e *appError) SetStatusCode(code int) Error {
	return &appError{
		msg:        e.msg,
		base:       e,
		attached:   e.attached,
		statusCode: code,
	}
}

func (e *appError) StatusCode() int {
	return e.statusCode
}

// Is matches the receiver, its ancestry and every attached error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*appError); ok && t == e {
		return true
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.attached {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As searches the attached errors, which Unwrap does not expose.
func (e *appError) As(target any) bool {
	for _, err := range e.attached {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}

// New creates a root error.
func New(msg string) Error {
	return &appError{msg: msg}
}

package compiler

import (
	"errors"
	"fmt"
)

// Error is a user-facing diagnostic tied to a source position. Every pass
// stops at and returns the first one it raises.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// errorAt builds a positioned error.
func errorAt(pos Position, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// AsError extracts a positioned error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// InternalError reports a broken compiler invariant: a scope mismatch, an
// unhandled node kind or an unmapped operator. It is raised with panic and
// carries no source position.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}

func internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

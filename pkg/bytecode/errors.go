package bytecode

import "fmt"

// FatalError reports a broken invariant in the encoder, assembler, memory or
// VM. It never carries a source position: it is not the user's fault.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Msg
}

// Fatalf builds a FatalError.
func Fatalf(format string, args ...interface{}) *FatalError {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	_, ok := err.(*FatalError)
	return ok
}

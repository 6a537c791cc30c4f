package reducer

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind distinguishes the two fatal *Error kinds reduction can surface. The
// conditions NonConstant, Incomplete and Flat are recoverable-within-
// fixed-point or a pass-through directive, never reported to the caller
// as an error. The iteration-limit safety net (iterationLimitError) and
// call-cache store failures are returned as other error types.
type Kind int

const (
	KindIncompatible Kind = iota
	KindGenericsInMain
)

// Error is the reducer's fatal error type. Both fatal kinds are reported by
// string rendering of the relevant signatures, never by structured field
// access.
type Error struct {
	Kind        Kind
	Declared    string
	Concrete    string
	stackFrames error // captured via github.com/pkg/errors, surfaced by -debug
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIncompatible:
		return fmt.Sprintf("call site `%s` incompatible with declaration `%s`", e.Concrete, e.Declared)
	case KindGenericsInMain:
		return "cannot generate code for generic function"
	default:
		return "reducer: unknown error"
	}
}

// Stack renders the stack trace captured when the error was constructed,
// or "" if none was captured. The CLI prints it only under -debug.
func (e *Error) Stack() string {
	if e.stackFrames == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.stackFrames)
}

func incompatible(declared, concrete string) *Error {
	return &Error{
		Kind:        KindIncompatible,
		Declared:    declared,
		Concrete:    concrete,
		stackFrames: pkgerrors.New("incompatible call site"),
	}
}

func genericsInMain() *Error {
	return &Error{
		Kind:        KindGenericsInMain,
		stackFrames: pkgerrors.New("generics in main"),
	}
}

package evaluator

import (
	"context"
	"errors"
	"fmt"
	"ksx/internal/ast"
	"ksx/internal/object"
)

// ErrCancelled ends a run whose cancellation token was signalled. It is
// never caught by a script's try statement.
var ErrCancelled = errors.New("script execution cancelled")

// RuntimeError is a fault raised while running a statement.
type RuntimeError struct {
	Err    error
	Source string
	Line   int
	Column int
}

func (r *RuntimeError) Error() string {
	if r.Line == 0 {
		return r.Err.Error()
	}
	return fmt.Sprintf("%s (%d:%d)", r.Err.Error(), r.Line, r.Column)
}

func (r *RuntimeError) Unwrap() error { return r.Err }

// ThrowError carries the value of a throw statement.
type ThrowError struct {
	Value object.Object
}

func (t *ThrowError) Error() string {
	if e, ok := t.Value.(*object.Error); ok {
		return e.Message
	}
	return object.ToString(t.Value)
}

func newError(format string, a ...interface{}) error {
	return fmt.Errorf(format, a...)
}

// wrapStatementError attaches the failing statement to an uncaught error.
func wrapStatementError(err error, stmt ast.Statement) error {
	var rt *RuntimeError
	var te *ThrowError
	if errors.As(err, &rt) || errors.As(err, &te) || errors.Is(err, ErrCancelled) || stmt == nil {
		return err
	}
	span := stmt.Base().Span
	return &RuntimeError{Err: err, Source: span.Source, Line: span.StartLine, Column: span.StartColumn}
}

// errorValue turns a caught error into the value bound to a catch variable.
func errorValue(err error) object.Object {
	var te *ThrowError
	if errors.As(err, &te) {
		return te.Value
	}
	for {
		rt, ok := err.(*RuntimeError)
		if !ok {
			break
		}
		err = rt.Err
	}
	return &object.Error{Message: err.Error()}
}

func isCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

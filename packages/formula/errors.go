package formula

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// ErrCircularReference is returned when evaluating a formula requires its
// own result.
var ErrCircularReference = errors.New("circular reference")

// ErrParse wraps every syntax error returned by Parse.
var ErrParse = errors.New("formula parse error")

// Error is a spreadsheet error value raised during evaluation. it preserves
// the error code for display in cells.
type Error struct {
	Code    cells.ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// Value returns the cell value for the error.
func (e *Error) Value() cells.Value { return cells.ErrorValue(e.Code) }

func newError(code cells.ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CircularReferenceError reports the chain of cells that closed a cycle.
type CircularReferenceError struct {
	Path []grid.BookPoint
}

func (e *CircularReferenceError) Error() string {
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %s", ErrCircularReference, strings.Join(parts, " -> "))
}

func (e *CircularReferenceError) Unwrap() error { return ErrCircularReference }

// errorLiterals lists the error codes that may appear literally in a
// formula. no entry is a prefix of another.
var errorLiterals = []string{
	cells.ErrorCodeDiv0.String(),
	cells.ErrorCodeValue.String(),
	cells.ErrorCodeName.String(),
	cells.ErrorCodeNull.String(),
	cells.ErrorCodeRef.String(),
	cells.ErrorCodeNum.String(),
	cells.ErrorCodeNA.String(),
}

// asValue converts an evaluation error into an error value. errors that are
// not spreadsheet errors are returned unchanged in err.
func asValue(err error) (cells.Value, error) {
	var se *Error
	if errors.As(err, &se) {
		return se.Value(), nil
	}
	return cells.Value{}, err
}

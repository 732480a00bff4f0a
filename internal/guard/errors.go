package guard

import (
	"errors"
	"fmt"

	"github.com/roach88/membrane/internal/ir"
)

// ErrorCode categorizes guard errors.
type ErrorCode string

const (
	// ErrCodeRejected indicates a guard rejected a specimen and no ejector
	// was supplied.
	ErrCodeRejected ErrorCode = "GUARD_REJECTED"

	// ErrCodeBadStamp indicates a stamp operation on an unstampable target
	// or with something that is not a stamp.
	ErrCodeBadStamp ErrorCode = "BAD_STAMP"

	// ErrCodeEjector indicates misuse of an ejector.
	ErrCodeEjector ErrorCode = "EJECTOR"

	// ErrCodeBadBox indicates an unseal of a box from another sealer.
	ErrCodeBadBox ErrorCode = "BAD_BOX"
)

// Error is returned for guard misuse.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// RejectedError is raised when a guard rejects a specimen and the caller
// supplied no ejector.
type RejectedError struct {
	Reason ir.Value
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if s, ok := e.Reason.(ir.String); ok {
		return fmt.Sprintf("%s: %s", ErrCodeRejected, string(s))
	}
	return fmt.Sprintf("%s: %s", ErrCodeRejected, ir.Describe(e.Reason))
}

// IsRejected returns true if err is a guard rejection.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// CodeOf returns the guard error code of err, or "".
func CodeOf(err error) ErrorCode {
	if IsRejected(err) {
		return ErrCodeRejected
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

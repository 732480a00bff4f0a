package membrane

import (
	"errors"
	"fmt"
)

// Error is the error type returned by mediated operations and by
// classification and taming setup.
//
// Error categories:
//   - Configuration: tagging conflicts and bad setup; fatal, caught during
//     development
//   - Access denied (NotReadable, NotCallable, NotSettable, NotDeletable):
//     raised by fault handlers; recoverable by installing a custom handler
//   - NotObject / NotFreezable: misuse of a guest operation
//   - Baseline: the platform baseline failed its self-check
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the mediated operation that failed, if any.
	Op Op

	// Object describes the target object (never its contents).
	Object string

	// Name is the slot name, if any.
	Name string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes membrane errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a classification or taming conflict.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeNotReadable indicates a denied read.
	ErrCodeNotReadable ErrorCode = "NOT_READABLE"

	// ErrCodeNotCallable indicates a denied invocation.
	ErrCodeNotCallable ErrorCode = "NOT_CALLABLE"

	// ErrCodeNotSettable indicates a denied write.
	ErrCodeNotSettable ErrorCode = "NOT_SETTABLE"

	// ErrCodeNotDeletable indicates a denied delete.
	ErrCodeNotDeletable ErrorCode = "NOT_DELETABLE"

	// ErrCodeNotObject indicates a slot operation on a primitive.
	ErrCodeNotObject ErrorCode = "NOT_OBJECT"

	// ErrCodeNotFreezable indicates a guest freeze of a non-container.
	ErrCodeNotFreezable ErrorCode = "NOT_FREEZABLE"

	// ErrCodeBaseline indicates the runtime refused to start.
	ErrCodeBaseline ErrorCode = "BASELINE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Object != "" && e.Name != "":
		return fmt.Sprintf("%s: %s (op=%s, object=%s, name=%s)", e.Code, e.Message, e.Op, e.Object, e.Name)
	case e.Object != "":
		return fmt.Sprintf("%s: %s (object=%s)", e.Code, e.Message, e.Object)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsConfigurationError returns true if err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsAccessDenied returns true if err is any access denial.
func IsAccessDenied(err error) bool {
	return hasCode(err, ErrCodeNotReadable, ErrCodeNotCallable, ErrCodeNotSettable, ErrCodeNotDeletable)
}

// IsNotCallable returns true if err denies an invocation.
func IsNotCallable(err error) bool {
	return hasCode(err, ErrCodeNotCallable)
}

// IsNotSettable returns true if err denies a write.
func IsNotSettable(err error) bool {
	return hasCode(err, ErrCodeNotSettable)
}

// IsNotDeletable returns true if err denies a delete.
func IsNotDeletable(err error) bool {
	return hasCode(err, ErrCodeNotDeletable)
}

// CodeOf returns the membrane error code of err, or "".
func CodeOf(err error) ErrorCode {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

func hasCode(err error, codes ...ErrorCode) bool {
	code := CodeOf(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewAccessError creates an access denial for op on (target, name).
func NewAccessError(op Op, target fmt.Stringer, name, message string) *Error {
	return &Error{
		Code:    op.deniedCode(),
		Op:      op,
		Object:  describe(target),
		Name:    name,
		Message: message,
	}
}

func describe(s fmt.Stringer) string {
	if s == nil {
		return ""
	}
	return s.String()
}

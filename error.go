package siteclone

import (
	"context"
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECANCELED   = "canceled"
	EINTERNAL   = "internal"
	EINVALID    = "invalid"
	ELOWCONTENT = "low_content"
	ENOTFOUND   = "not_found"
	EPAGELOAD   = "page_load"
	EROOTLOAD   = "root_load"
)

// Error represents an application-specific error. Code is machine-readable,
// Message is safe to show to the user.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("siteclone error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// IsRetryable reports whether a capture failure is worth another attempt.
// Page load failures and expired per-phase deadlines are retried; thin
// content, invalid input and caller cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch ErrorCode(err) {
	case EPAGELOAD:
		return true
	case ELOWCONTENT, EINVALID, ECANCELED, EROOTLOAD:
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

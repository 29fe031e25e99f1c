package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of a service failure
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	CodeItemUnavailable   ErrorCode = "ITEM_UNAVAILABLE"
	CodeTotalMismatch     ErrorCode = "TOTAL_MISMATCH"
	CodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	CodeMenuItemNotFound  ErrorCode = "MENU_ITEM_NOT_FOUND"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is returned by every service operation. Message is safe to show
// to callers; Err keeps the underlying cause for logs only.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call may succeed
func (e *ServiceError) Retryable() bool {
	return e.Code == CodeInternal
}

// Is matches another *ServiceError by code, so errors.Is(err, ErrForbidden) works
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code && t.Message == ""
}

// Sentinels for errors.Is checks
var (
	ErrValidation        = &ServiceError{Code: CodeValidation}
	ErrItemNotFound      = &ServiceError{Code: CodeItemNotFound}
	ErrItemUnavailable   = &ServiceError{Code: CodeItemUnavailable}
	ErrTotalMismatch     = &ServiceError{Code: CodeTotalMismatch}
	ErrOrderNotFound     = &ServiceError{Code: CodeOrderNotFound}
	ErrMenuItemNotFound  = &ServiceError{Code: CodeMenuItemNotFound}
	ErrForbidden         = &ServiceError{Code: CodeForbidden}
	ErrInvalidTransition = &ServiceError{Code: CodeInvalidTransition}
	ErrInternal          = &ServiceError{Code: CodeInternal}
)

func newError(code ErrorCode, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// internalError hides err behind a generic message. Context deadlines keep
// their own wording so callers know a retry is reasonable.
func internalError(message string, err error) *ServiceError {
	if errors.Is(err, context.DeadlineExceeded) {
		message = "Request timed out, please retry"
	}
	return &ServiceError{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the code of err, or CodeInternal for foreign errors
func CodeOf(err error) ErrorCode {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return CodeInternal
}

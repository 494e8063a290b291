// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-fs.

package api

import (
	"errors"
	"fmt"
	"io"
)

// Common errors used across the library.
var (
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrAlreadyExists    = fmt.Errorf("resource already exists")
	ErrNotFound         = fmt.Errorf("resource not found")
	ErrForbidden        = fmt.Errorf("access forbidden")
	ErrWouldBlock       = fmt.Errorf("operation would block")
	ErrOperationTimeout = fmt.Errorf("operation timeout")
	ErrNotSupported     = fmt.Errorf("operation not supported")
	ErrServerClosed     = fmt.Errorf("server closed")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeMalformedRequest
	ErrCodeTooLarge
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeForbidden
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches a code-class target: an *Error with an empty Message, such as
// NewError(ErrCodeTooLarge, ""), matches every error of that code. Named
// errors with a message only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around an existing cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode carried by err, mapping the package
// sentinels onto their codes. Unknown errors are ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrOperationTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	case errors.Is(err, ErrAlreadyExists):
		return ErrCodeAlreadyExists
	}
	return ErrCodeInternal
}

// StatusFor maps an error to the HTTP status line a client should see.
// A zero status means no response is appropriate and the connection
// should simply be closed.
func StatusFor(err error) (int, string) {
	if err == nil {
		return 200, "OK"
	}
	if errors.Is(err, io.EOF) {
		return 0, ""
	}
	switch CodeOf(err) {
	case ErrCodeMalformedRequest, ErrCodeInvalidArgument:
		return 400, "Bad Request"
	case ErrCodeForbidden:
		return 403, "Forbidden"
	case ErrCodeNotFound:
		return 404, "Not Found"
	case ErrCodeTooLarge:
		return 431, "Request Header Fields Too Large"
	case ErrCodeNotSupported:
		return 0, ""
	}
	return 500, "Internal Server Error"
}

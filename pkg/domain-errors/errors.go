// Package domainerrors is the closed error taxonomy shared by services and transports.
//
// Every failure that crosses a package boundary carries a Code. Callers branch on
// the code (HasCode / CodeOf), never on the Go type of the underlying cause, so a
// store, a subprocess and an HTTP client can all fail "the same way" from the
// orchestrator's point of view.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is the discriminant of an Error.
type Code string

const (
	CodeBadRequest    Code = "bad_request"
	CodeValidation    Code = "validation_error"
	CodeConflict      Code = "conflict"
	CodeNotFound      Code = "not_found"
	CodeUnauthorized  Code = "unauthorized"
	CodeForbidden     Code = "forbidden"
	CodeTimeout       Code = "timeout"
	CodeInternal      Code = "internal_error"
	CodeWorkspace     Code = "workspace_error"
	CodeToolExecution Code = "tool_execution_error"
	CodeAuth          Code = "auth_error"
	CodeState         Code = "state_error"
	CodeProvisioning  Code = "provisioning_error"
	CodeNotification  Code = "notification_error"
)

// Error is a coded failure with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the code to the HTTP status a transport should answer with.
func (e *Error) Status() int {
	return ToHTTPStatus(e.Code)
}

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Cause returns the innermost coded error, which for a wrapped provisioning
// failure is the sub-step that failed first.
func Cause(err error) *Error {
	var last *Error
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			break
		}
		last = de
		err = de.Err
	}
	return last
}

func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeAuth:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeState:
		return http.StatusConflict
	case CodeWorkspace, CodeToolExecution, CodeProvisioning:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

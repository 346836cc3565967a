package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a stable error code for programmatic handling.
type Code string

const (
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeInvalid      Code = "invalid"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
)

// Reason narrows a forbidden error down to the policy rule that denied it.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonNotOwner              Reason = "not_owner"
	ReasonInvalidState          Reason = "invalid_state"
	ReasonSelfApproval          Reason = "self_approval"
	ReasonAssignOutsideApproved Reason = "assign_outside_approved"
	ReasonNotAssigned           Reason = "not_assigned"
	ReasonRoleNotAllowed        Reason = "role_not_allowed"
)

// AppError is a structured error carrying a code, a user-facing message and
// the wrapped cause.
type AppError struct {
	Code    Code
	Reason  Reason
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New creates a new AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }

func NotFound(message string) *AppError { return New(CodeNotFound, message) }

func Invalid(message string) *AppError { return New(CodeInvalid, message) }

func Conflict(message string) *AppError { return New(CodeConflict, message) }

func Internal(err error, message string) *AppError { return Wrap(err, CodeInternal, message) }

// Forbidden creates a policy violation carrying the rule that was broken.
func Forbidden(reason Reason, message string) *AppError {
	return &AppError{Code: CodeForbidden, Reason: reason, Message: message}
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// From returns the AppError inside err, or an internal AppError wrapping it.
func From(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err, "internal error")
}

// HTTPStatus maps a code to its HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalid:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"
	CodeInvalidRange = "INVALID_DATE_RANGE"
	CodeLocked       = "LOCKED"
)

// AppError is the error shape every HTTP handler renders. Services return it
// so that handlers never need to inspect repository or driver errors.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// WithDetails merges details into the error, overwriting existing keys.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

func newError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	appErr := newError(code, httpStatus, message)
	appErr.Err = err
	return appErr
}

func NotFound(resource string) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found")
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{"resource": resource, "id": id})
}

func Validation(message string, details map[string]any) *AppError {
	appErr := newError(CodeValidation, http.StatusUnprocessableEntity, message)
	appErr.Details = details
	return appErr
}

func InvalidInput(message string) *AppError {
	return newError(CodeInvalidInput, http.StatusBadRequest, message)
}

// InvalidRange reports a stay whose entry date is not strictly before its exit date.
func InvalidRange(message string) *AppError {
	return newError(CodeInvalidRange, http.StatusUnprocessableEntity, message)
}

func Unauthorized(message string) *AppError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Conflict(message string) *AppError {
	return newError(CodeConflict, http.StatusConflict, message)
}

// Locked is returned while another process holds the sync lock.
func Locked(message string) *AppError {
	return newError(CodeLocked, http.StatusLocked, message)
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

func Timeout(message string) *AppError {
	return newError(CodeTimeout, http.StatusGatewayTimeout, message)
}

func Unavailable(service string) *AppError {
	return newError(CodeUnavailable, http.StatusServiceUnavailable, service+" is temporarily unavailable")
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

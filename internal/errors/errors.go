// Package errors provides the structured error type used across every
// layer of the service. Domain code returns an *AppError carrying one of
// the kinds below; the HTTP edge maps it to a status code and a JSON
// envelope without needing to know anything about the originating layer.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode is one of the taxonomy kinds a domain operation can fail with.
type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrConflict     ErrorCode = "CONFLICT"
	ErrRateLimited  ErrorCode = "RATE_LIMITED"
	ErrDependency   ErrorCode = "DEPENDENCY"
	ErrInternal     ErrorCode = "INTERNAL"
)

// StatusCodes maps each error code to its HTTP status.
var StatusCodes = map[ErrorCode]int{
	ErrInvalidInput: http.StatusUnprocessableEntity,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrNotFound:     http.StatusNotFound,
	ErrConflict:     http.StatusConflict,
	ErrRateLimited:  http.StatusTooManyRequests,
	ErrDependency:   http.StatusServiceUnavailable,
	ErrInternal:     http.StatusInternalServerError,
}

// AppError is the one error type every layer above the storage driver
// deals in.
type AppError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status for this error's code.
func (e *AppError) StatusCode() int {
	if code, ok := StatusCodes[e.Code]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// New creates an AppError with no extra details.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Timestamp: time.Now()}
}

// NewWithDetails creates an AppError carrying structured detail, typically
// field-level validation failures.
func NewWithDetails(code ErrorCode, message string, details interface{}) *AppError {
	return &AppError{Code: code, Message: message, Details: details, Timestamp: time.Now()}
}

// WithRequestID attaches the request id for correlation in the response body.
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Wrap converts any error into an AppError, passing AppErrors through
// unchanged so call sites can wrap indiscriminately.
func Wrap(err error, code ErrorCode) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(code, err.Error())
}

// IsAppError type-asserts err as an *AppError.
func IsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

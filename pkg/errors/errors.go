package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Common error codes used across all packages
const (
	// Generic errors
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeNotConfigured     ErrorCode = "NOT_CONFIGURED"

	// 2FA errors
	ErrCode2FAInvalid               ErrorCode = "TWO_FA_INVALID"
	ErrCode2FAMethodExists          ErrorCode = "TWO_FA_METHOD_EXISTS"
	ErrCode2FAMethodNotFound        ErrorCode = "TWO_FA_METHOD_NOT_FOUND"
	ErrCode2FAMethodCorrupt         ErrorCode = "TWO_FA_METHOD_CORRUPT"
	ErrCode2FATokenGenerationFailed ErrorCode = "TWO_FA_TOKEN_GENERATION_FAILED"
	ErrCode2FANoHandler             ErrorCode = "TWO_FA_NO_HANDLER"
	ErrCode2FADeliveryFailed        ErrorCode = "TWO_FA_DELIVERY_FAILED"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code, so package
// level sentinels keep matching after they are wrapped or given details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of the error with the detail added. The receiver
// is left untouched so shared sentinels are never mutated.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithDetails returns a copy of the error with all details added
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	c := e.clone()
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// WithCause returns a copy of the error wrapping err
func (e *Error) WithCause(err error) *Error {
	c := e.clone()
	c.Err = err
	return c
}

func (e *Error) clone() *Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error
// Returns nil if the error is not a structured Error
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput, ErrCode2FAInvalid:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeForbidden:
		return http.StatusForbidden

	// 404 Not Found
	case ErrCodeNotFound, ErrCode2FAMethodNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case ErrCodeAlreadyExists, ErrCode2FAMethodExists:
		return http.StatusConflict

	// 429 Too Many Requests
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 502 Bad Gateway: the delivery channel failed us
	case ErrCode2FADeliveryFailed:
		return http.StatusBadGateway

	// 503 Service Unavailable
	case ErrCodeTimeout, ErrCodeNotConfigured:
		return http.StatusServiceUnavailable

	// 500 Internal Server Error (default)
	case ErrCodeInternal, ErrCode2FAMethodCorrupt, ErrCode2FATokenGenerationFailed, ErrCode2FANoHandler:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors for frequently used errors

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// Unauthorized creates an "unauthorized" error
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// RateLimitExceeded creates a "rate limit exceeded" error
func RateLimitExceeded(retryAfter string) *Error {
	err := New(ErrCodeRateLimitExceeded, "rate limit exceeded")
	if retryAfter != "" {
		err = err.WithDetail("retry_after", retryAfter)
	}
	return err
}

// Package errors provides structured error handling with error codes.
//
// Every domain failure carries an ErrorCode, a human readable message, optional
// details and an optional wrapped cause. Codes map onto HTTP status codes so
// handlers can translate service errors without knowing every sentinel.
//
// # Basic Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "type is required")
//	err = errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query database")
//
// Package level sentinels can be compared with the standard library because
// (*Error).Is matches on the code:
//
//	var ErrMethodNotFound = errors.New(errors.ErrCode2FAMethodNotFound, "method not found")
//
//	err := ErrMethodNotFound.WithDetail("method_id", id)
//	stderrors.Is(err, ErrMethodNotFound) // true
//
// WithDetail, WithDetails and WithCause always return a copy, so sentinels are
// never mutated by callers.
//
// # HTTP Mapping
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// Unknown errors map to 500.
package errors

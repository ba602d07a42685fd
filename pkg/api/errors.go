package api

import (
	"context"
	"fmt"
)

// AuthError indicates that credential acquisition failed. Description
// carries the upstream error_description when the token endpoint supplied
// one, or a generic transport message otherwise.
type AuthError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("auth failed: %s", e.Description)
}

// NewAuthError creates an AuthError from an upstream error code and description.
func NewAuthError(code, description string) *AuthError {
	return &AuthError{Code: code, Description: description}
}

// ResolutionError indicates that a (model type, model name) pair is not
// known to the endpoint resolver and no explicit override was supplied.
type ResolutionError struct {
	ModelType ModelType
	Model     string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no endpoint for %s model %q", e.ModelType, e.Model)
}

// NewResolutionError creates a ResolutionError naming the unrecognized model.
func NewResolutionError(typ ModelType, model string) *ResolutionError {
	return &ResolutionError{ModelType: typ, Model: model}
}

// RequestError indicates a failed service call: a non-2xx HTTP status, a
// service error body carried on a 2xx response, or a network-level failure
// (StatusCode 0). Message preserves the upstream error_msg when present.
type RequestError struct {
	StatusCode int
	Code       int
	Message    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("request failed: service error %d: %s", e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("request failed: HTTP %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("request failed: %s", e.Message)
	}
}

// NewRequestError creates a RequestError for a non-2xx HTTP response.
func NewRequestError(statusCode int, message string) *RequestError {
	if message == "" {
		message = fmt.Sprintf("unexpected service error (HTTP %d)", statusCode)
	}
	return &RequestError{StatusCode: statusCode, Message: message}
}

// NewServiceError creates a RequestError from a structured service error body.
func NewServiceError(statusCode, code int, message string) *RequestError {
	return &RequestError{StatusCode: statusCode, Code: code, Message: message}
}

// TimeoutError indicates a call exceeded the configured transport deadline.
// It unwraps to context.DeadlineExceeded so errors.Is keeps working for
// callers that check the context sentinel.
type TimeoutError struct {
	Op string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: deadline exceeded", e.Op)
}

// Unwrap reports the context sentinel for errors.Is.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// NewTimeoutError creates a TimeoutError for the given operation.
func NewTimeoutError(op string) *TimeoutError {
	return &TimeoutError{Op: op}
}

// CanceledError indicates an operation was aborted by explicit cancellation.
// It unwraps to context.Canceled.
type CanceledError struct {
	Op string
}

// Error implements the error interface.
func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s: canceled", e.Op)
}

// Unwrap reports the context sentinel for errors.Is.
func (e *CanceledError) Unwrap() error { return context.Canceled }

// NewCanceledError creates a CanceledError for the given operation.
func NewCanceledError(op string) *CanceledError {
	return &CanceledError{Op: op}
}

// StateError indicates an illegal operation on a stream handle, such as
// splitting twice or splitting after consumption has begun.
type StateError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NewStateError creates a StateError for the given operation.
func NewStateError(op, reason string) *StateError {
	return &StateError{Op: op, Reason: reason}
}

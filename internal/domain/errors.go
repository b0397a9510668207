package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a gateway error.
type ErrorType string

const (
	// ErrorTypeInvalidInput indicates a malformed or unsupported request
	// (bad media type, bad content type, missing required field).
	ErrorTypeInvalidInput ErrorType = "invalid_input"

	// ErrorTypePreconditionFailed indicates a stage was run out of order.
	ErrorTypePreconditionFailed ErrorType = "precondition_failed"

	// ErrorTypeNotFound indicates an unknown project.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRemoteUnreachable indicates a transport-level failure
	// reaching the external webhook.
	ErrorTypeRemoteUnreachable ErrorType = "remote_unreachable"

	// ErrorTypeTimeout indicates the external webhook did not answer in time.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRemoteRejected indicates the external webhook answered with a
	// non-2xx status.
	ErrorTypeRemoteRejected ErrorType = "remote_rejected"

	// ErrorTypeInternal indicates an unexpected condition: parse failures,
	// filesystem errors, and everything else.
	ErrorTypeInternal ErrorType = "internal"
)

// APIError is the canonical error surfaced by every component. Handlers
// translate it to the matching HTTP status.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	// Stage names the stage involved, when the error is stage-related.
	Stage Stage `json:"stage,omitempty"`

	// UpstreamStatus carries the webhook's HTTP status for remote_rejected.
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode maps the error type to the status returned to the caller.
// remote_rejected surfaces the upstream status when it is a valid error
// status, otherwise 502.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidInput, ErrorTypePreconditionFailed:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRemoteUnreachable:
		return http.StatusServiceUnavailable
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeRemoteRejected:
		if e.UpstreamStatus >= 400 && e.UpstreamStatus < 600 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithStage attaches the stage the error relates to.
func (e *APIError) WithStage(stage Stage) *APIError {
	e.Stage = stage
	return e
}

// WithUpstreamStatus attaches the webhook's HTTP status.
func (e *APIError) WithUpstreamStatus(status int) *APIError {
	e.UpstreamStatus = status
	return e
}

// NewAPIError creates a canonical error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeInvalidInput, fmt.Sprintf(format, args...))
}

// ErrPreconditionFailed creates a stage-ordering error.
func ErrPreconditionFailed(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypePreconditionFailed, fmt.Sprintf(format, args...))
}

// ErrNotFound creates a not found error.
func ErrNotFound(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeNotFound, fmt.Sprintf(format, args...))
}

// ErrRemoteUnreachable creates a transport failure error.
func ErrRemoteUnreachable(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeRemoteUnreachable, fmt.Sprintf(format, args...))
}

// ErrTimeout creates a webhook timeout error.
func ErrTimeout(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeTimeout, fmt.Sprintf(format, args...))
}

// ErrRemoteRejected creates a non-2xx upstream error.
func ErrRemoteRejected(status int, format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeRemoteRejected, fmt.Sprintf(format, args...)).
		WithUpstreamStatus(status)
}

// ErrInternal creates an internal error.
func ErrInternal(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeInternal, fmt.Sprintf(format, args...))
}

// AsAPIError extracts a canonical error from err, wrapping unknown errors as
// internal so every failure reaching a handler has a status mapping.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal("%s", err.Error())
}

package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies a gateway failure.
type ErrorType string

const (
	ErrorTypeRouteNotFound    ErrorType = "route_not_found"
	ErrorTypeUnknownService   ErrorType = "unknown_service"
	ErrorTypeBackendTransport ErrorType = "backend_transport"
	ErrorTypeBackendStatus    ErrorType = "backend_status"
)

// Sentinels for errors.Is matching. Only the Type is compared.
var (
	ErrRouteNotFound    = &Error{Type: ErrorTypeRouteNotFound}
	ErrUnknownService   = &Error{Type: ErrorTypeUnknownService}
	ErrBackendTransport = &Error{Type: ErrorTypeBackendTransport}
	ErrBackendStatus    = &Error{Type: ErrorTypeBackendStatus}
)

// Error is a structured gateway error with optional cause and details.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]any
}

// NewError creates a new structured error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Details: make(map[string]any),
	}
}

// RouteNotFound reports that no configured prefix matches path.
func RouteNotFound(path string, available []string) *Error {
	return NewError(ErrorTypeRouteNotFound, fmt.Sprintf("No service found for path: %s", path)).
		WithDetail("path", path).
		WithDetail("available_paths", available)
}

// UnknownService reports a service name missing from the registry.
func UnknownService(name string) *Error {
	return NewError(ErrorTypeUnknownService, fmt.Sprintf("unknown service %q", name)).
		WithDetail("service", name)
}

// BackendTransport wraps a connection, timeout or DNS failure.
func BackendTransport(target string, cause error) *Error {
	return NewError(ErrorTypeBackendTransport, "backend unreachable").
		WithCause(cause).
		WithDetail("target", target)
}

// BackendStatus records that a backend answered with an error status.
func BackendStatus(target string, status int) *Error {
	return NewError(ErrorTypeBackendStatus, fmt.Sprintf("backend returned %d", status)).
		WithDetail("target", target).
		WithDetail("status", status)
}

// WithCause adds the underlying cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Type so sentinels compare equal to constructed errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// HTTPStatusCode returns the status a caller sees for this error type.
// BackendStatus errors are passed through and carry their own status.
func (e *Error) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeRouteNotFound:
		return http.StatusNotFound
	case ErrorTypeBackendTransport:
		return http.StatusServiceUnavailable
	case ErrorTypeBackendStatus:
		if status, ok := e.Details["status"].(int); ok {
			return status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of an error surfaced to callers.
type ErrorKind string

const (
	ErrorKindTransport      ErrorKind = "transport_error"
	ErrorKindProtocol       ErrorKind = "protocol_error"
	ErrorKindToolExecution  ErrorKind = "tool_execution_error"
	ErrorKindTimeout        ErrorKind = "timeout_error"
	ErrorKindCancelled      ErrorKind = "cancelled"
	ErrorKindArchiveLoad    ErrorKind = "archive_load_error"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindRateLimit      ErrorKind = "rate_limit_error"
	ErrorKindServer         ErrorKind = "server_error"
	ErrorKindAuthentication ErrorKind = "authentication_error"
)

// Error is a structured error with a kind, an optional HTTP status from
// the provider, and a human readable message.
type Error struct {
	Kind    ErrorKind `json:"type"`
	Status  int       `json:"status,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Param != "":
		return fmt.Sprintf("%s: %s (param: %s)", e.Kind, e.Message, e.Param)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Kind, e.Message, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or the
// empty string if there is none.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewTransportError creates an Error for connection level failures.
func NewTransportError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindTransport, Message: message, Err: cause}
}

// NewProtocolError creates an Error for malformed or provider-reported
// stream failures.
func NewProtocolError(message string) *Error {
	return &Error{Kind: ErrorKindProtocol, Message: message}
}

// NewToolExecutionError creates an Error for a failed tool invocation.
func NewToolExecutionError(tool string, cause error) *Error {
	return &Error{
		Kind:    ErrorKindToolExecution,
		Param:   tool,
		Message: cause.Error(),
		Err:     cause,
	}
}

// NewTimeoutError creates an Error for a request whose deadline elapsed.
func NewTimeoutError(message string) *Error {
	return &Error{Kind: ErrorKindTimeout, Message: message}
}

// NewCancelledError creates an Error for an explicitly cancelled request.
func NewCancelledError(message string) *Error {
	return &Error{Kind: ErrorKindCancelled, Message: message}
}

// NewArchiveLoadError creates an Error for an unreadable or invalid
// buffer archive.
func NewArchiveLoadError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindArchiveLoad, Message: message, Err: cause}
}

// NewInvalidRequestError creates an Error for invalid request parameters.
func NewInvalidRequestError(param, message string) *Error {
	return &Error{Kind: ErrorKindInvalidRequest, Param: param, Message: message}
}

// NewRateLimitError creates an Error for provider rate limiting.
func NewRateLimitError(message string) *Error {
	return &Error{Kind: ErrorKindRateLimit, Status: 429, Message: message}
}

// NewServerError creates an Error for provider side failures.
func NewServerError(status int, message string) *Error {
	return &Error{Kind: ErrorKindServer, Status: status, Message: message}
}

// NewAuthenticationError creates an Error for rejected credentials.
func NewAuthenticationError(status int, message string) *Error {
	return &Error{Kind: ErrorKindAuthentication, Status: status, Message: message}
}

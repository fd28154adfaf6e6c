package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
)

// MapHTTPError converts a non-2xx status and its (possibly truncated)
// body into an Error. The provider's own message is used when the body
// carries one.
func MapHTTPError(status int, body []byte) *api.Error {
	message := ExtractErrorMessage(body)

	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		if message == "" {
			message = fmt.Sprintf("invalid request to provider (HTTP %d)", status)
		}
		e := api.NewInvalidRequestError("", message)
		e.Status = status
		return e

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "provider authentication failed"
		}
		return api.NewAuthenticationError(status, message)

	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "provider rate limit exceeded"
		}
		return api.NewRateLimitError(message)

	case status >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("provider server error (HTTP %d)", status)
		}
		return api.NewServerError(status, message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected provider response (HTTP %d)", status)
		}
		return api.NewServerError(status, message)
	}
}

// MapNetworkError converts an error from the HTTP round trip or a body
// read into an Error, distinguishing deadline expiry and cancellation
// through ctx.
func MapNetworkError(ctx context.Context, err error) *api.Error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return api.NewTimeoutError("request deadline exceeded")
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return api.NewCancelledError("request cancelled")
	default:
		return api.NewTransportError(fmt.Sprintf("provider connection error: %s", err.Error()), err)
	}
}

// ExtractErrorMessage returns the provider error message from an error
// body, covering the shapes used by OpenAI-style, Anthropic and Gemini
// APIs. Returns "" when none is found.
func ExtractErrorMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"error.message", "error", "message", "detail"} {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// ErrorFrame reports whether a decoded frame is a provider error payload
// and, if so, returns the corresponding protocol error delta.
func ErrorFrame(data []byte) (Delta, bool) {
	errField := gjson.GetBytes(data, "error")
	isErrorEvent := gjson.GetBytes(data, "type").Str == "error"
	if !errField.Exists() && !isErrorEvent {
		return Delta{}, false
	}
	message := ExtractErrorMessage(data)
	if message == "" {
		message = Truncate(string(data), 200)
	}
	return ErrorDelta(api.NewProtocolError(message)), true
}

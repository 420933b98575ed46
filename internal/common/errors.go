// Package common defines shared constants and sentinel errors used across
// the storysync layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")

	// Storage-level errors (local database open/operation failure).
	ErrStorage = errors.New("storage unavailable")

	// Transport-level errors (network unreachable after retries).
	ErrTransport = errors.New("transport error")

	// Auth errors (missing/invalid bearer token, malformed login response).
	ErrUnauthorized = errors.New("unauthorized")

	// Permission errors (notification permission denied by the user).
	ErrPermissionDenied = errors.New("permission denied")

	// Aborted errors (the user or platform cancelled an in-progress flow,
	// e.g. dismissing the subscription prompt).
	ErrAborted = errors.New("aborted")

	// Validation errors (rejected before any network call).
	ErrValidation = errors.New("validation error")
)

// APIError is an HTTP error response that reached us: the request arrived at
// the server and the server answered with a non-2xx status. It is never
// retried; the caller interprets the status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err to an *APIError if one is present in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

package client

import "fmt"

// AuthError reports invalid credentials or an unreachable host during login.
type AuthError struct {
	// Reason is a short human-readable cause.
	Reason string
	// Err is the underlying transport error, when one exists.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError reports a non-2xx response or a transport failure on an
// authenticated call. StatusCode is zero for network and timeout errors.
type APIError struct {
	// StatusCode is the HTTP status of the failing response, or zero.
	StatusCode int
	// Endpoint is the API path of the failing call.
	Endpoint string
	// Err is the underlying transport error, when one exists.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api call %s failed with status %d", e.Endpoint, e.StatusCode)
	}

	return fmt.Sprintf("api call %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

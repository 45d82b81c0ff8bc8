package openmeteo

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned when the upstream answers with a well-formed error
// payload ({"error": true, "reason": "..."}).
type APIError struct {
	Reason string
}

func (e *APIError) Error() string {
	return "API error: " + e.Reason
}

// ConnectionError covers transport failures, non-2xx statuses, unreadable
// bodies and requests refused by the circuit breaker or rate limiter.
type ConnectionError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connection error: %s: http status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connection error: %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// breakerNeutral reports whether err says nothing about upstream health:
// client-side 4xx statuses and upstream error payloads do not trip the breaker.
func breakerNeutral(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		code := connErr.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

package wbapi

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the provider rejects the token (HTTP 401).
// It is never retried: the caller needs a fresh token.
var ErrUnauthorized = errors.New("provider rejected token")

// StatusError describes a single non-2xx provider response
type StatusError struct {
	URL    string
	Status int
	Body   string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("provider error (status=%d) url=%s: %s", e.Status, e.URL, e.Body)
}

// Unwrap maps a 401 onto ErrUnauthorized so errors.Is works on either form
func (e *StatusError) Unwrap() error {
	if e.Status == 401 {
		return ErrUnauthorized
	}
	return nil
}

// ExhaustedError is returned when every attempt of a request failed
type ExhaustedError struct {
	URL        string
	Attempts   int
	LastStatus int
	Err        error
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("request to %s failed after %d attempts (last status=%d): %v", e.URL, e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err carries a token rejection
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsExhausted reports whether err means "no data this round"
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// truncate keeps provider bodies short in logs and errors
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by errors.Is against a *RequestError's status.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// ErrNoBaseURL is returned by New when no base URL is configured.
var ErrNoBaseURL = errors.New("api base URL is required")

// RequestError is returned for every non-2xx response and every transport
// failure. StatusCode is 0 when no response was received.
type RequestError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	// Message is the "message" field of the server's error body, if any.
	Message string
	Err     error
}

// Error describes the failed request. It is meant for logs; UserMessage is
// what the user sees.
func (e *RequestError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

// UserMessage returns the message field of the server's error body. It is
// empty for transport failures and for responses without one.
func (e *RequestError) UserMessage() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the status sentinels.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

package rest

import (
	"errors"
	"fmt"
)

var (
	// ErrNotModified is a non-error sentinel for 304 responses.
	ErrNotModified = errors.New("not modified")

	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrServerError      = errors.New("server error")
)

// ErrorHTTPResponse is the JSON body Discord attaches to error
// responses.
type ErrorHTTPResponse struct {
	Message string      `json:"message"`
	Code    uint        `json:"code"`
	Errors  interface{} `json:"errors,omitempty"`
}

// APIError couples the HTTP classification sentinel with the parsed
// Discord error body. errors.Is matches the sentinel.
type APIError struct {
	Status int
	Kind   error
	Body   ErrorHTTPResponse
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("discord api: %d %s (code %d)", e.Status, e.Body.Message, e.Body.Code)
	}
	return fmt.Sprintf("discord api: status %d", e.Status)
}

func (e *APIError) Unwrap() error { return e.Kind }

func classifyStatus(status int) error {
	switch status {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 405:
		return ErrMethodNotAllowed
	default:
		return nil
	}
}

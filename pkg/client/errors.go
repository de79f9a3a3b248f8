package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a failed request with the server's failure body.
type APIError struct {
	StatusCode int
	Class      ErrorClass

	// Message and Detail are the server's "message" and "error" fields.
	Message string
	Detail  string

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("api %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is maps 409 and 404 responses to the restaurant sentinels, so callers can
// test client errors the same way as directory errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case restaurant.ErrDuplicate:
		return e.StatusCode == http.StatusConflict
	case restaurant.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// classifyStatus returns the error class of an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// classifyError returns the class carried by err, if any.
func classifyError(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx responses are final
		return false
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

package restaurant

import (
	"errors"
	"fmt"
)

// Errors returned by directory operations.
var (
	// ErrDuplicate is returned when creating a restaurant whose name is taken.
	ErrDuplicate = errors.New("restaurant already exists")

	// ErrNotFound is returned when no restaurant has the requested name.
	ErrNotFound = errors.New("restaurant not found")

	// ErrInvalid is returned for malformed input.
	ErrInvalid = errors.New("invalid restaurant input")
)

// BackendError reports a failure of the durable store or cache.
type BackendError struct {
	// Op is the directory operation that failed (e.g. "rate", "query").
	Op  string
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend error: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Backend wraps err as a BackendError for op. A nil err stays nil.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

// IsBackend reports whether err is, or wraps, a BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

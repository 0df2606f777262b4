package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrInvalidResponse is returned when a backend response cannot be used.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when a backend blocks the content due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrUnsupportedModel is returned when no backend serves the requested model.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrMissingAPIKey is returned when a backend needs a key and none was provided.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidConfig is returned when a component configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generation configuration")
)

// APICallError is a failed HTTP call to a model provider. ResponseBody holds
// the raw body, which providers usually shape as {"error": {"message": ...}}.
type APICallError struct {
	StatusCode   int
	ResponseBody string
	Message      string
	Err          error
}

// Error implements the error interface.
func (e *APICallError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("model provider returned status %d", e.StatusCode)
	}
}

// Unwrap returns the underlying error.
func (e *APICallError) Unwrap() error {
	return e.Err
}

// RetryError is the composite failure of a call that was retried until its
// attempts were exhausted. Errors holds every attempt in order.
type RetryError struct {
	Message   string
	LastError error
	Errors    []error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.LastError != nil {
		return fmt.Sprintf("failed after %d attempts: %v", len(e.Errors), e.LastError)
	}
	return fmt.Sprintf("failed after %d attempts", len(e.Errors))
}

// Unwrap returns the last attempt's error.
func (e *RetryError) Unwrap() error {
	return e.LastError
}

package service

import (
	"errors"
	"fmt"

	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is; the API layer maps them to status codes.
var (
	// ErrNotFound indicates that the generation or item does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the caller does not own the generation.
	// API layer should map this to HTTP 403 Forbidden.
	ErrUnauthorized = errors.New("not authorized to access this resource")

	// ErrInvalidState indicates the item cannot be retried in its current status.
	// API layer should map this to HTTP 409 Conflict.
	ErrInvalidState = errors.New("can only retry failed or aborted items")

	// ErrGenerationFinished indicates an abort of a generation that already finished.
	// API layer should map this to HTTP 400 Bad Request.
	ErrGenerationFinished = errors.New("generation already completed or aborted")

	// ErrQueueFull indicates the background queue could not take the run.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrQueueFull = errors.New("generation queue is full, please retry later")
)

// GenerationServiceError wraps unexpected errors from the services with context.
type GenerationServiceError struct {
	// Operation is the operation that failed (e.g., "enqueue", "retry_item")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for GenerationServiceError.
func (e *GenerationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GenerationServiceError) Unwrap() error {
	return e.Err
}

// NewGenerationServiceError creates a GenerationServiceError.
// Known sentinel errors are returned directly without wrapping, and store
// not-found errors become ErrNotFound.
func NewGenerationServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrNotFound, ErrUnauthorized, ErrInvalidState, ErrGenerationFinished, ErrQueueFull,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}

	if errors.Is(err, domain.ErrValidation) {
		return err
	}

	return &GenerationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

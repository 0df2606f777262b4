package api

import (
	"errors"
	"net/http"

	"github.com/uibattles/uibattles-api/internal/api/shared"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/service"
	"github.com/uibattles/uibattles-api/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrGenerationFinished),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, auth.ErrMissingToken):
		return "Authentication required"

	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	case errors.Is(err, service.ErrNotFound):
		return "Generation not found"

	case errors.Is(err, service.ErrInvalidState):
		return "Can only retry failed or aborted items"

	case errors.Is(err, service.ErrGenerationFinished):
		return "Generation already completed or aborted"

	case errors.Is(err, service.ErrQueueFull):
		return "Generation queue is full, please retry later"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"

	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and message for err and logs the full
// error. A non-empty fallback replaces the generic message of 500 responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

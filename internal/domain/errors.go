package domain

import "errors"

var (
	// ErrValidation is wrapped by every rule violation raised while building
	// or validating a generation, so callers can map them all to one status.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned for a malformed generation or item ID.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnauthorized is returned when a user acts on a generation owned by
	// someone else.
	ErrUnauthorized = errors.New("unauthorized operation")
)

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when a row is rejected before or by the
	// database because it breaks a schema rule.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed wraps failures to begin or commit a transaction.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrGenerationNotFound = fmt.Errorf("%w: generation", ErrNotFound)
	ErrItemNotFound       = fmt.Errorf("%w: generation item", ErrNotFound)
)

// IsNotFoundError reports whether err is, or wraps, ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
)

// GenerationStore defines the persistence operations on generations and their
// items. Item writes set the status together with the fields that belong to
// it (html, error and timestamps) so that a reader never sees a completed item
// without its html or an error item without its message.
type GenerationStore interface {
	// CreateGeneration inserts the generation and all of its items atomically.
	CreateGeneration(ctx context.Context, gen *domain.Generation, items []*domain.GenerationItem) error

	// GetGeneration retrieves a generation by ID.
	// Returns ErrGenerationNotFound if it does not exist.
	GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error)

	// GetItems returns the items of a generation in creation order.
	GetItems(ctx context.Context, generationID uuid.UUID) ([]*domain.GenerationItem, error)

	// GetItem retrieves a single item. Returns ErrItemNotFound if it does not exist.
	GetItem(ctx context.Context, itemID uuid.UUID) (*domain.GenerationItem, error)

	// MarkGenerationStarted sets status in_progress and started_at.
	MarkGenerationStarted(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkGenerationFinished sets a terminal status and completed_at.
	MarkGenerationFinished(ctx context.Context, id uuid.UUID, status domain.GenerationStatus, at time.Time) error

	// MarkItemGenerating sets status generating and started_at.
	MarkItemGenerating(ctx context.Context, itemID uuid.UUID, at time.Time) error

	// CompleteItem stores the html, sets status completed and completed_at.
	CompleteItem(ctx context.Context, itemID uuid.UUID, html string, at time.Time) error

	// FailItem stores the error message, sets status error and completed_at.
	FailItem(ctx context.Context, itemID uuid.UUID, message string, at time.Time) error

	// AbortItem sets status aborted and completed_at.
	AbortItem(ctx context.Context, itemID uuid.UUID, at time.Time) error

	// ResetItem returns an item to pending and clears html, error and both
	// timestamps.
	ResetItem(ctx context.Context, itemID uuid.UUID) error

	// RequestAbort sets the sticky abort flag. Setting it twice is not an error.
	RequestAbort(ctx context.Context, id uuid.UUID) error

	// IsAbortRequested reads the abort flag.
	IsAbortRequested(ctx context.Context, id uuid.UUID) (bool, error)

	// ListUserGenerations returns the user's generations newest first. When
	// cursor is non-nil only generations created strictly before the cursor
	// generation are returned.
	ListUserGenerations(ctx context.Context, userID uuid.UUID, cursor *uuid.UUID, limit int) ([]domain.GenerationSummary, error)

	// FindInterruptedGenerations returns the IDs of generations whose status is
	// pending or in_progress.
	FindInterruptedGenerations(ctx context.Context) ([]uuid.UUID, error)
}

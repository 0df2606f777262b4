package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
)

// GalleryQuery describes one page request against the public gallery.
type GalleryQuery struct {
	Sort domain.GallerySort
	// Cursor is the last row of the previous page, or nil for the first page.
	Cursor *domain.GalleryRow
	// Search is matched case-insensitively as a substring of the name.
	Search string
	// Limit is the maximum number of rows returned.
	Limit int
}

// GalleryStore defines the read side of the public gallery plus the view counter.
type GalleryStore interface {
	// GetGalleryRow returns the sort keys of a generation, used to resolve a cursor.
	// Returns ErrGenerationNotFound if it does not exist.
	GetGalleryRow(ctx context.Context, id uuid.UUID) (*domain.GalleryRow, error)

	// ListGallery returns generations with at least one completed item, ordered
	// descending by the sort key with the ID as tie-breaker.
	ListGallery(ctx context.Context, q GalleryQuery) ([]domain.GalleryRow, error)

	// GetPreviews returns, per generation, its earliest created completed item.
	// Generations without one are absent from the map.
	GetPreviews(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Preview, error)

	// CountItems returns the total item count per generation.
	CountItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)

	// IncrementViewCount atomically adds one view and returns the new count.
	// Returns ErrGenerationNotFound if the generation does not exist.
	IncrementViewCount(ctx context.Context, id uuid.UUID) (int, error)
}

// LikeStore defines the persistence of likes.
type LikeStore interface {
	// ToggleLike removes the user's like when present and adds it otherwise,
	// adjusting the generation's likes_count in the same transaction.
	// Returns ErrGenerationNotFound if the generation does not exist.
	ToggleLike(ctx context.Context, generationID, userID uuid.UUID) (domain.LikeStatus, error)

	// GetLikeStatus reports whether the user likes the generation and its count.
	// Returns ErrGenerationNotFound if the generation does not exist.
	GetLikeStatus(ctx context.Context, generationID, userID uuid.UUID) (domain.LikeStatus, error)

	// GetLikedSet returns the subset of ids the user has liked.
	GetLikedSet(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]bool, error)
}

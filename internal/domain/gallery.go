package domain

import (
	"time"

	"github.com/google/uuid"
)

// GallerySort selects the ordering of the public gallery
type GallerySort string

// Supported gallery orderings. Every ordering is descending.
const (
	GallerySortRecent    GallerySort = "recent"
	GallerySortPopular   GallerySort = "popular"
	GallerySortMostLiked GallerySort = "most_liked"
)

// ParseGallerySort maps a request value onto a GallerySort.
// Unknown or empty values fall back to GallerySortRecent.
func ParseGallerySort(s string) GallerySort {
	switch GallerySort(s) {
	case GallerySortPopular:
		return GallerySortPopular
	case GallerySortMostLiked:
		return GallerySortMostLiked
	default:
		return GallerySortRecent
	}
}

// GalleryRow holds the base columns of a gallery entry before enrichment.
type GalleryRow struct {
	ID         uuid.UUID
	Name       string
	CreatedAt  time.Time
	ViewCount  int
	LikesCount int
}

// Preview is the completed item shown on a gallery card.
type Preview struct {
	ID        uuid.UUID `json:"id"`
	ModelName string    `json:"modelName"`
	HTML      string    `json:"html"`
}

// GalleryCard is one enriched gallery entry.
type GalleryCard struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	ItemCount  int       `json:"itemCount"`
	ViewCount  int       `json:"viewCount"`
	LikesCount int       `json:"likesCount"`
	Preview    *Preview  `json:"preview"`
	UserLiked  bool      `json:"userLiked"`
}

// GenerationSummary is a row of the owner's generation history.
type GenerationSummary struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Status    GenerationStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// LikeStatus reports whether a user likes a generation and its like count.
type LikeStatus struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

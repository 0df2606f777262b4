package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/store"
)

// GalleryRequest is one page request against the public gallery.
type GalleryRequest struct {
	Cursor *uuid.UUID
	Limit  int
	Search string
	Sort   domain.GallerySort
	// ViewerID is the signed-in user, or nil for anonymous viewers.
	ViewerID *uuid.UUID
}

// GalleryPage is one page of enriched gallery cards.
type GalleryPage struct {
	Generations []domain.GalleryCard `json:"generations"`
	NextCursor  *uuid.UUID           `json:"nextCursor"`
	HasMore     bool                 `json:"hasMore"`
}

// GenerationDetail is the public view of one generation.
type GenerationDetail struct {
	Generation DetailGeneration `json:"generation"`
	Items      []DetailItem     `json:"items"`
}

// DetailGeneration holds the public fields of a generation.
type DetailGeneration struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    uuid.UUID `json:"userId"`
}

// DetailItem holds the public fields of an item.
type DetailItem struct {
	ID        uuid.UUID `json:"id"`
	ModelID   string    `json:"modelId"`
	ModelName string    `json:"modelName"`
	HTML      *string   `json:"html"`
	CreatedAt time.Time `json:"createdAt"`
}

// GalleryService provides the public browsing operations.
type GalleryService interface {
	// List returns one page of generations that have at least one completed item.
	List(ctx context.Context, req GalleryRequest) (*GalleryPage, error)

	// GetDetail returns a generation and all of its items to any viewer.
	GetDetail(ctx context.Context, generationID uuid.UUID) (*GenerationDetail, error)

	// ToggleLike flips the user's like on a generation.
	ToggleLike(ctx context.Context, userID, generationID uuid.UUID) (domain.LikeStatus, error)

	// GetLikeStatus reports the like state for a viewer. Anonymous viewers
	// always get {false, 0}.
	GetLikeStatus(ctx context.Context, viewerID *uuid.UUID, generationID uuid.UUID) (domain.LikeStatus, error)

	// IncrementView adds one view and returns the new count.
	IncrementView(ctx context.Context, generationID uuid.UUID) (int, error)
}

type galleryServiceImpl struct {
	gallery     store.GalleryStore
	likes       store.LikeStore
	generations store.GenerationStore
	logger      *slog.Logger
}

// NewGalleryService creates a new GalleryService.
// It returns an error if any of the required dependencies are nil.
func NewGalleryService(
	gallery store.GalleryStore,
	likes store.LikeStore,
	generations store.GenerationStore,
	log *slog.Logger,
) (GalleryService, error) {
	if gallery == nil {
		return nil, &GenerationServiceError{Operation: "create_service", Message: "gallery store cannot be nil"}
	}
	if likes == nil {
		return nil, &GenerationServiceError{Operation: "create_service", Message: "like store cannot be nil"}
	}
	if generations == nil {
		return nil, &GenerationServiceError{Operation: "create_service", Message: "generation store cannot be nil"}
	}
	if log == nil {
		log = slog.Default()
	}

	return &galleryServiceImpl{
		gallery:     gallery,
		likes:       likes,
		generations: generations,
		logger:      log.With("component", "gallery_service"),
	}, nil
}

// List resolves the cursor to its sort keys once, fetches one row more than
// the page size to detect a further page, then enriches the page with
// previews, item counts and, for a signed-in viewer, the liked flags. A
// cursor that no longer exists restarts from the first page.
func (s *galleryServiceImpl) List(ctx context.Context, req GalleryRequest) (*GalleryPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	limit := ClampPageSize(req.Limit)

	q := store.GalleryQuery{
		Sort:   domain.ParseGallerySort(string(req.Sort)),
		Search: req.Search,
		Limit:  limit + 1,
	}

	if req.Cursor != nil {
		row, err := s.gallery.GetGalleryRow(ctx, *req.Cursor)
		switch {
		case err == nil:
			q.Cursor = row
		case errors.Is(err, store.ErrNotFound):
			log.Debug("gallery cursor not found, starting from first page",
				slog.String("cursor", req.Cursor.String()))
		default:
			return nil, NewGenerationServiceError("list_gallery", "failed to resolve cursor", err)
		}
	}

	rows, err := s.gallery.ListGallery(ctx, q)
	if err != nil {
		return nil, NewGenerationServiceError("list_gallery", "failed to list gallery", err)
	}

	page := &GalleryPage{Generations: []domain.GalleryCard{}}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
		last := rows[limit-1].ID
		page.NextCursor = &last
	}
	if len(rows) == 0 {
		return page, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	previews, err := s.gallery.GetPreviews(ctx, ids)
	if err != nil {
		return nil, NewGenerationServiceError("list_gallery", "failed to load previews", err)
	}
	counts, err := s.gallery.CountItems(ctx, ids)
	if err != nil {
		return nil, NewGenerationServiceError("list_gallery", "failed to count items", err)
	}
	liked := map[uuid.UUID]bool{}
	if req.ViewerID != nil {
		liked, err = s.likes.GetLikedSet(ctx, ids, *req.ViewerID)
		if err != nil {
			return nil, NewGenerationServiceError("list_gallery", "failed to load likes", err)
		}
	}

	page.Generations = make([]domain.GalleryCard, len(rows))
	for i, row := range rows {
		card := domain.GalleryCard{
			ID:         row.ID,
			Name:       row.Name,
			CreatedAt:  row.CreatedAt,
			ItemCount:  counts[row.ID],
			ViewCount:  row.ViewCount,
			LikesCount: row.LikesCount,
			UserLiked:  liked[row.ID],
		}
		if p, ok := previews[row.ID]; ok {
			card.Preview = &p
		}
		page.Generations[i] = card
	}
	return page, nil
}

func (s *galleryServiceImpl) GetDetail(ctx context.Context, generationID uuid.UUID) (*GenerationDetail, error) {
	gen, err := s.generations.GetGeneration(ctx, generationID)
	if err != nil {
		return nil, NewGenerationServiceError("get_detail", "failed to load generation", err)
	}
	items, err := s.generations.GetItems(ctx, generationID)
	if err != nil {
		return nil, NewGenerationServiceError("get_detail", "failed to load items", err)
	}

	detail := &GenerationDetail{
		Generation: DetailGeneration{
			ID:        gen.ID,
			Name:      gen.Name,
			Prompt:    gen.Prompt,
			CreatedAt: gen.CreatedAt,
			UserID:    gen.UserID,
		},
		Items: make([]DetailItem, len(items)),
	}
	for i, item := range items {
		detail.Items[i] = DetailItem{
			ID:        item.ID,
			ModelID:   item.ModelID,
			ModelName: item.ModelName,
			HTML:      item.HTML,
			CreatedAt: item.CreatedAt,
		}
	}
	return detail, nil
}

func (s *galleryServiceImpl) ToggleLike(ctx context.Context, userID, generationID uuid.UUID) (domain.LikeStatus, error) {
	status, err := s.likes.ToggleLike(ctx, generationID, userID)
	if err != nil {
		return domain.LikeStatus{}, NewGenerationServiceError("toggle_like", "failed to toggle like", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("like toggled",
		slog.String("generation_id", generationID.String()),
		slog.String("user_id", userID.String()),
		slog.Bool("liked", status.Liked))
	return status, nil
}

func (s *galleryServiceImpl) GetLikeStatus(
	ctx context.Context,
	viewerID *uuid.UUID,
	generationID uuid.UUID,
) (domain.LikeStatus, error) {
	if viewerID == nil {
		return domain.LikeStatus{}, nil
	}
	status, err := s.likes.GetLikeStatus(ctx, generationID, *viewerID)
	if err != nil {
		return domain.LikeStatus{}, NewGenerationServiceError("get_like_status", "failed to read like status", err)
	}
	return status, nil
}

func (s *galleryServiceImpl) IncrementView(ctx context.Context, generationID uuid.UUID) (int, error) {
	count, err := s.gallery.IncrementViewCount(ctx, generationID)
	if err != nil {
		return 0, NewGenerationServiceError("increment_view", "failed to increment view count", err)
	}
	return count, nil
}

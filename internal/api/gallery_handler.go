package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/api/shared"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/service"
)

// GalleryHandler handles the public gallery endpoints.
type GalleryHandler struct {
	galleryService service.GalleryService
	logger         *slog.Logger
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(galleryService service.GalleryService, logger *slog.Logger) *GalleryHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GalleryHandler")
	}

	return &GalleryHandler{
		galleryService: galleryService,
		logger:         logger.With(slog.String("component", "gallery_handler")),
	}
}

// List handles GET /api/generations.
// Query parameters: cursor, limit, search, sort (recent, popular, most_liked).
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.GalleryRequest{
		Cursor:   queryCursor(r),
		Limit:    queryLimit(r),
		Search:   strings.TrimSpace(q.Get("search")),
		Sort:     domain.ParseGallerySort(q.Get("sort")),
		ViewerID: viewerID(r),
	}

	page, err := h.galleryService.List(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch generations")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// Detail handles GET /api/generations/{id}.
func (h *GalleryHandler) Detail(w http.ResponseWriter, r *http.Request) {
	generationID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	detail, err := h.galleryService.GetDetail(r.Context(), generationID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// ToggleLike handles POST /api/generations/{id}/like.
func (h *GalleryHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, generationID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	status, err := h.galleryService.ToggleLike(r.Context(), userID, generationID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to toggle like")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("like toggled",
		slog.String("generation_id", generationID.String()),
		slog.Bool("liked", status.Liked))
	shared.RespondWithJSON(w, r, http.StatusOK, LikeResponse{
		Success:    true,
		Liked:      status.Liked,
		LikesCount: status.LikesCount,
	})
}

// LikeStatus handles GET /api/generations/{id}/like. Anonymous viewers get
// an unliked, zero-count answer.
func (h *GalleryHandler) LikeStatus(w http.ResponseWriter, r *http.Request) {
	generationID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status, err := h.galleryService.GetLikeStatus(r.Context(), viewerID(r), generationID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get like status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// View handles POST /api/generations/{id}/view.
func (h *GalleryHandler) View(w http.ResponseWriter, r *http.Request) {
	generationID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	count, err := h.galleryService.IncrementView(r.Context(), generationID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to increment view count")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ViewResponse{Success: true, ViewCount: count})
}

// viewerID returns the signed-in user set by the optional auth middleware.
func viewerID(r *http.Request) *uuid.UUID {
	id, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &id
}

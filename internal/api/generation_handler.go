package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/uibattles/uibattles-api/internal/api/shared"
	"github.com/uibattles/uibattles-api/internal/generation"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/service"
	"github.com/uibattles/uibattles-api/internal/service/auth"
)

// GenerationHandler handles the owner-facing generation endpoints.
type GenerationHandler struct {
	generationService service.GenerationService
	logger            *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generationService service.GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerationHandler")
	}

	return &GenerationHandler{
		generationService: generationService,
		logger:            logger.With(slog.String("component", "generation_handler")),
	}
}

// Generate handles POST /api/generate.
// It stores the generation and queues the run; the client polls the status
// endpoint for progress.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return
	}

	var req GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("invalid generate request body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithValidationError(w, r, shared.ValidationDetails(err))
		return
	}

	gen, err := h.generationService.Enqueue(r.Context(), userID, service.EnqueueRequest{
		Name:        req.Name,
		Prompt:      req.Prompt,
		Models:      req.Models,
		Credentials: generation.Credentials{APIKey: req.APIKey},
	})
	if err != nil {
		HandleAPIError(w, r, err, "Generation failed")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, GenerateResponse{ID: gen.ID})
}

// Status handles GET /api/generation/{id}/status.
func (h *GenerationHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, generationID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	view, err := h.generationService.GetStatus(r.Context(), userID, generationID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statusToResponse(view))
}

// Abort handles POST /api/generation/{id}/abort.
func (h *GenerationHandler) Abort(w http.ResponseWriter, r *http.Request) {
	userID, generationID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.generationService.Abort(r.Context(), userID, generationID); err != nil {
		HandleAPIError(w, r, err, "Failed to abort generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, shared.SuccessResponse{Success: true})
}

// RetryItem handles POST /api/generation/item/{itemId}/retry.
func (h *GenerationHandler) RetryItem(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, itemID, ok := handleUserIDAndPathUUID(w, r, "itemId", h.logger)
	if !ok {
		return
	}

	var req RetryRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		log.Debug("invalid retry request body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.APIKey == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "API key required")
		return
	}

	_, err := h.generationService.RetryItem(r.Context(), userID, itemID, generation.Credentials{APIKey: req.APIKey})
	if err != nil {
		HandleAPIError(w, r, err, "Retry failed")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, shared.SuccessResponse{Success: true})
}

// ListAccount handles GET /api/account/generations.
func (h *GenerationHandler) ListAccount(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return
	}

	page, err := h.generationService.ListUserGenerations(r.Context(), userID, queryCursor(r), queryLimit(r))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch generations")
		return
	}

	log.Debug("listed account generations",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(page.Generations)))
	shared.RespondWithJSON(w, r, http.StatusOK, accountPageToResponse(page))
}

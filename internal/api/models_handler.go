package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/uibattles/uibattles-api/internal/api/shared"
)

// ModelCatalog lists the models a generation may be requested for.
type ModelCatalog interface {
	Models(ctx context.Context) ([]json.RawMessage, error)
}

// ModelsResponse wraps the catalog the way the provider does.
type ModelsResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ModelsHandler serves the model catalog.
type ModelsHandler struct {
	catalog ModelCatalog
	logger  *slog.Logger
}

// NewModelsHandler creates a new ModelsHandler.
func NewModelsHandler(catalog ModelCatalog, logger *slog.Logger) *ModelsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ModelsHandler")
	}

	return &ModelsHandler{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "models_handler")),
	}
}

// List handles GET /api/models.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models, err := h.catalog.Models(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to fetch models", err)
		return
	}
	if models == nil {
		models = []json.RawMessage{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ModelsResponse{Data: models})
}

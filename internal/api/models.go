package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/service"
)

// GenerateRequest defines the payload for the generate endpoint.
type GenerateRequest struct {
	Prompt string   `json:"prompt" validate:"required,max=2000"`
	Name   string   `json:"name"   validate:"required,max=100"`
	Models []string `json:"models" validate:"required,min=1,max=5,dive,required"`
	// APIKey is the caller's provider key. It is used for this run only and
	// never stored.
	APIKey string `json:"apiKey" validate:"required"`
}

// RetryRequest defines the payload for the item retry endpoint.
type RetryRequest struct {
	APIKey string `json:"apiKey"`
}

// GenerateResponse is returned when a generation has been queued.
type GenerateResponse struct {
	ID uuid.UUID `json:"id"`
}

// StatusItem is one item in a status response. The generated HTML is left
// out so that polling stays small.
type StatusItem struct {
	ID          uuid.UUID         `json:"id"`
	ModelID     string            `json:"modelId"`
	ModelName   string            `json:"modelName"`
	Status      domain.ItemStatus `json:"status"`
	Error       *string           `json:"error"`
	StartedAt   *time.Time        `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt"`
}

// StatusResponse is the payload of the status endpoint.
type StatusResponse struct {
	ID             uuid.UUID               `json:"id"`
	Name           string                  `json:"name"`
	Prompt         string                  `json:"prompt"`
	UserID         uuid.UUID               `json:"userId"`
	Status         domain.GenerationStatus `json:"status"`
	StartedAt      *time.Time              `json:"startedAt"`
	CompletedAt    *time.Time              `json:"completedAt"`
	AbortRequested bool                    `json:"abortRequested"`
	Items          []StatusItem            `json:"items"`
}

// LikeResponse is returned after a like toggle.
type LikeResponse struct {
	Success    bool `json:"success"`
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// ViewResponse is returned after a view is recorded.
type ViewResponse struct {
	Success   bool `json:"success"`
	ViewCount int  `json:"viewCount"`
}

// AccountGenerationsResponse is one page of the caller's generations.
type AccountGenerationsResponse struct {
	Generations []domain.GenerationSummary `json:"generations"`
	NextCursor  *uuid.UUID                 `json:"nextCursor"`
	HasMore     bool                       `json:"hasMore"`
}

func statusToResponse(view *domain.GenerationStatusView) StatusResponse {
	gen := view.Generation
	resp := StatusResponse{
		ID:             gen.ID,
		Name:           gen.Name,
		Prompt:         gen.Prompt,
		UserID:         gen.UserID,
		Status:         gen.Status,
		StartedAt:      gen.StartedAt,
		CompletedAt:    gen.CompletedAt,
		AbortRequested: gen.AbortRequested,
		Items:          make([]StatusItem, 0, len(view.Items)),
	}
	for _, item := range view.Items {
		resp.Items = append(resp.Items, StatusItem{
			ID:          item.ID,
			ModelID:     item.ModelID,
			ModelName:   item.ModelName,
			Status:      item.Status,
			Error:       item.Error,
			StartedAt:   item.StartedAt,
			CompletedAt: item.CompletedAt,
		})
	}
	return resp
}

func accountPageToResponse(page *service.UserGenerationsPage) AccountGenerationsResponse {
	gens := page.Generations
	if gens == nil {
		gens = []domain.GenerationSummary{}
	}
	return AccountGenerationsResponse{
		Generations: gens,
		NextCursor:  page.NextCursor,
		HasMore:     page.HasMore,
	}
}

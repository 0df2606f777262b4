package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// GenerationStatus represents the lifecycle state of a generation
type GenerationStatus string

// Possible generation status values
const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusInProgress GenerationStatus = "in_progress"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusAborted    GenerationStatus = "aborted"
)

// ItemStatus represents the lifecycle state of a single model's attempt
type ItemStatus string

// Possible item status values
const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusGenerating ItemStatus = "generating"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusError      ItemStatus = "error"
	ItemStatusAborted    ItemStatus = "aborted"
)

// Limits applied to user submitted generations.
const (
	MaxPromptLength = 2000
	MaxNameLength   = 100
	MaxModels       = 5
)

// Common validation errors for Generation and GenerationItem
var (
	ErrEmptyGenerationID       = errors.New("generation ID cannot be empty")
	ErrEmptyGenerationUserID   = errors.New("generation user ID cannot be empty")
	ErrEmptyGenerationName     = errors.New("generation name cannot be empty")
	ErrEmptyGenerationPrompt   = errors.New("generation prompt cannot be empty")
	ErrNameTooLong             = errors.New("generation name is too long")
	ErrPromptTooLong           = errors.New("generation prompt is too long")
	ErrNoModels                = errors.New("at least one model is required")
	ErrTooManyModels           = errors.New("too many models requested")
	ErrEmptyModelID            = errors.New("model ID cannot be empty")
	ErrInvalidGenerationStatus = errors.New("invalid generation status")
	ErrInvalidItemStatus       = errors.New("invalid generation item status")
)

// Generation is one user-submitted prompt fanned out to several models.
// Status and timestamps are owned by the executor while a run is active;
// the counters are owned by the like and view operations.
type Generation struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Prompt         string           `json:"prompt"`
	UserID         uuid.UUID        `json:"userId"`
	Status         GenerationStatus `json:"status"`
	AbortRequested bool             `json:"abortRequested"`
	ViewCount      int              `json:"viewCount"`
	LikesCount     int              `json:"likesCount"`
	StartedAt      *time.Time       `json:"startedAt"`
	CompletedAt    *time.Time       `json:"completedAt"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// GenerationItem is one model's attempt at a generation. It is the unit of
// concurrency, timeout and retry.
type GenerationItem struct {
	ID           uuid.UUID  `json:"id"`
	GenerationID uuid.UUID  `json:"generationId"`
	ModelID      string     `json:"modelId"`
	ModelName    string     `json:"modelName"`
	Position     int        `json:"-"`
	Status       ItemStatus `json:"status"`
	HTML         *string    `json:"html,omitempty"`
	Error        *string    `json:"error"`
	StartedAt    *time.Time `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// NewGeneration creates a pending generation together with one pending item
// per requested model. Model display names default to the model identifier.
func NewGeneration(userID uuid.UUID, name, prompt string, models []string) (*Generation, []*GenerationItem, error) {
	now := time.Now().UTC()
	gen := &Generation{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Prompt:    prompt,
		UserID:    userID,
		Status:    GenerationStatusPending,
		CreatedAt: now,
	}

	if err := gen.Validate(); err != nil {
		return nil, nil, err
	}

	if len(models) == 0 {
		return nil, nil, ErrNoModels
	}
	if len(models) > MaxModels {
		return nil, nil, ErrTooManyModels
	}

	items := make([]*GenerationItem, 0, len(models))
	for i, modelID := range models {
		modelID = strings.TrimSpace(modelID)
		if modelID == "" {
			return nil, nil, ErrEmptyModelID
		}
		items = append(items, &GenerationItem{
			ID:           uuid.New(),
			GenerationID: gen.ID,
			ModelID:      modelID,
			ModelName:    modelID,
			Position:     i,
			Status:       ItemStatusPending,
			CreatedAt:    now,
		})
	}

	return gen, items, nil
}

// Validate checks if the Generation has valid data.
func (g *Generation) Validate() error {
	if g.ID == uuid.Nil {
		return ErrEmptyGenerationID
	}
	if g.UserID == uuid.Nil {
		return ErrEmptyGenerationUserID
	}
	if g.Name == "" {
		return ErrEmptyGenerationName
	}
	if utf8.RuneCountInString(g.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.TrimSpace(g.Prompt) == "" {
		return ErrEmptyGenerationPrompt
	}
	if utf8.RuneCountInString(g.Prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if !g.Status.Valid() {
		return ErrInvalidGenerationStatus
	}
	return nil
}

// IsTerminal reports whether the generation has finished its run.
func (g *Generation) IsTerminal() bool {
	return g.Status == GenerationStatusCompleted || g.Status == GenerationStatusAborted
}

// Valid reports whether s is a known generation status.
func (s GenerationStatus) Valid() bool {
	switch s {
	case GenerationStatusPending, GenerationStatusInProgress,
		GenerationStatusCompleted, GenerationStatusAborted:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusGenerating, ItemStatusCompleted,
		ItemStatusError, ItemStatusAborted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether an item in status s will not change again
// without an explicit retry.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusError || s == ItemStatusAborted
}

// CanRetry reports whether an item in status s may be reset to pending.
func (s ItemStatus) CanRetry() bool {
	return s == ItemStatusError || s == ItemStatusAborted
}

// FinalGenerationStatus computes the terminal status of a generation from its
// items: aborted only when every item was aborted, completed otherwise. Items
// that ended in error still yield a completed generation.
func FinalGenerationStatus(items []*GenerationItem) GenerationStatus {
	if len(items) == 0 {
		return GenerationStatusCompleted
	}
	for _, item := range items {
		if item.Status != ItemStatusAborted {
			return GenerationStatusCompleted
		}
	}
	return GenerationStatusAborted
}

// PendingItems returns the items whose status is pending, preserving order.
func PendingItems(items []*GenerationItem) []*GenerationItem {
	pending := make([]*GenerationItem, 0, len(items))
	for _, item := range items {
		if item.Status == ItemStatusPending {
			pending = append(pending, item)
		}
	}
	return pending
}

// GenerationStatusView is a generation together with a snapshot of its items,
// as returned to a polling owner.
type GenerationStatusView struct {
	Generation *Generation       `json:"generation"`
	Items      []*GenerationItem `json:"items"`
}

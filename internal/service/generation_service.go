package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/generation"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/store"
	"github.com/uibattles/uibattles-api/internal/task"
)

// Pagination limits shared by the list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// RunQueue accepts generation runs for background execution.
type RunQueue interface {
	Submit(ctx context.Context, run task.Run) error
}

// RunAbandoner fails the unsettled items of a generation that will not run.
type RunAbandoner interface {
	Abandon(ctx context.Context, generationID uuid.UUID, reason string) error
}

// EnqueueRequest is a new generation submitted by a user.
type EnqueueRequest struct {
	Name        string
	Prompt      string
	Models      []string
	Credentials generation.Credentials
}

// UserGenerationsPage is one page of a user's generation history.
type UserGenerationsPage struct {
	Generations []domain.GenerationSummary `json:"generations"`
	NextCursor  *uuid.UUID                 `json:"nextCursor"`
	HasMore     bool                       `json:"hasMore"`
}

// GenerationService provides the owner-facing generation operations.
type GenerationService interface {
	// Enqueue persists a new generation and submits it for execution.
	Enqueue(ctx context.Context, userID uuid.UUID, req EnqueueRequest) (*domain.Generation, error)

	// Abort requests cooperative cancellation of a generation.
	Abort(ctx context.Context, userID, generationID uuid.UUID) error

	// RetryItem resets a failed or aborted item and submits a new run.
	RetryItem(ctx context.Context, userID, itemID uuid.UUID, creds generation.Credentials) (*domain.GenerationItem, error)

	// GetStatus returns a generation and its items to its owner.
	GetStatus(ctx context.Context, userID, generationID uuid.UUID) (*domain.GenerationStatusView, error)

	// ListUserGenerations returns the user's generations newest first.
	ListUserGenerations(ctx context.Context, userID uuid.UUID, cursor *uuid.UUID, limit int) (*UserGenerationsPage, error)
}

type generationServiceImpl struct {
	store     store.GenerationStore
	queue     RunQueue
	abandoner RunAbandoner
	logger    *slog.Logger
	now       func() time.Time
}

// NewGenerationService creates a new GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	s store.GenerationStore,
	queue RunQueue,
	abandoner RunAbandoner,
	log *slog.Logger,
) (GenerationService, error) {
	if s == nil {
		return nil, &GenerationServiceError{Operation: "create_service", Message: "store cannot be nil"}
	}
	if queue == nil {
		return nil, &GenerationServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	}
	if abandoner == nil {
		return nil, &GenerationServiceError{Operation: "create_service", Message: "abandoner cannot be nil"}
	}
	if log == nil {
		log = slog.Default()
	}

	return &generationServiceImpl{
		store:     s,
		queue:     queue,
		abandoner: abandoner,
		logger:    log.With("component", "generation_service"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enqueue creates the generation with one pending item per model and hands
// it to the runner. When the queue is full the items are failed at once, the
// generation is finalized and ErrQueueFull is returned.
func (s *generationServiceImpl) Enqueue(
	ctx context.Context,
	userID uuid.UUID,
	req EnqueueRequest,
) (*domain.Generation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	gen, items, err := domain.NewGeneration(userID, req.Name, req.Prompt, req.Models)
	if err != nil {
		log.Debug("rejected generation request", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if err := s.store.CreateGeneration(ctx, gen, items); err != nil {
		return nil, NewGenerationServiceError("enqueue", "failed to save generation", err)
	}

	run := task.Run{GenerationID: gen.ID, Credentials: req.Credentials}
	if err := s.queue.Submit(ctx, run); err != nil {
		log.Warn("could not queue generation run",
			slog.String("generation_id", gen.ID.String()),
			slog.String("error", err.Error()))

		if abandonErr := s.abandoner.Abandon(context.WithoutCancel(ctx), gen.ID, generation.QueueFullMessage); abandonErr != nil {
			log.Error("failed to abandon unqueued generation",
				slog.String("generation_id", gen.ID.String()),
				slog.String("error", abandonErr.Error()))
		}
		return nil, ErrQueueFull
	}

	log.Info("generation enqueued",
		slog.String("generation_id", gen.ID.String()),
		slog.String("user_id", userID.String()),
		slog.Int("model_count", len(items)))
	return gen, nil
}

// Abort sets the sticky abort flag. Aborting twice is not an error; aborting
// a finished generation is.
func (s *generationServiceImpl) Abort(ctx context.Context, userID, generationID uuid.UUID) error {
	gen, err := s.ownedGeneration(ctx, "abort", userID, generationID)
	if err != nil {
		return err
	}
	if gen.IsTerminal() {
		return ErrGenerationFinished
	}

	if err := s.store.RequestAbort(ctx, generationID); err != nil {
		return NewGenerationServiceError("abort", "failed to request abort", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("generation abort requested",
		slog.String("generation_id", generationID.String()))
	return nil
}

// RetryItem validates in order: item exists, generation exists, caller owns
// it, item is in error or aborted. The abort flag is left as it is, so
// retrying an item of an aborted generation aborts it again.
func (s *generationServiceImpl) RetryItem(
	ctx context.Context,
	userID, itemID uuid.UUID,
	creds generation.Credentials,
) (*domain.GenerationItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, NewGenerationServiceError("retry_item", "failed to load item", err)
	}

	if _, err := s.ownedGeneration(ctx, "retry_item", userID, item.GenerationID); err != nil {
		return nil, err
	}

	if !item.Status.CanRetry() {
		return nil, ErrInvalidState
	}

	if err := s.store.ResetItem(ctx, itemID); err != nil {
		return nil, NewGenerationServiceError("retry_item", "failed to reset item", err)
	}

	run := task.Run{GenerationID: item.GenerationID, Credentials: creds}
	if err := s.queue.Submit(ctx, run); err != nil {
		log.Warn("could not queue retry run",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()))

		if failErr := s.store.FailItem(context.WithoutCancel(ctx), itemID, generation.QueueFullMessage, s.now()); failErr != nil {
			log.Error("failed to restore item after queue rejection",
				slog.String("item_id", itemID.String()),
				slog.String("error", failErr.Error()))
		}
		return nil, ErrQueueFull
	}

	log.Info("generation item retry queued",
		slog.String("item_id", itemID.String()),
		slog.String("generation_id", item.GenerationID.String()))

	item.Status = domain.ItemStatusPending
	item.HTML = nil
	item.Error = nil
	item.StartedAt = nil
	item.CompletedAt = nil
	return item, nil
}

// GetStatus returns the generation with its items in creation order.
func (s *generationServiceImpl) GetStatus(
	ctx context.Context,
	userID, generationID uuid.UUID,
) (*domain.GenerationStatusView, error) {
	gen, err := s.ownedGeneration(ctx, "get_status", userID, generationID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetItems(ctx, generationID)
	if err != nil {
		return nil, NewGenerationServiceError("get_status", "failed to load items", err)
	}

	return &domain.GenerationStatusView{Generation: gen, Items: items}, nil
}

// ListUserGenerations pages through the user's generations by creation time.
func (s *generationServiceImpl) ListUserGenerations(
	ctx context.Context,
	userID uuid.UUID,
	cursor *uuid.UUID,
	limit int,
) (*UserGenerationsPage, error) {
	limit = ClampPageSize(limit)

	rows, err := s.store.ListUserGenerations(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, NewGenerationServiceError("list_user_generations", "failed to list generations", err)
	}

	page := &UserGenerationsPage{Generations: rows}
	if len(rows) > limit {
		page.Generations = rows[:limit]
		page.HasMore = true
		last := page.Generations[limit-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// ownedGeneration loads a generation and checks that userID owns it.
func (s *generationServiceImpl) ownedGeneration(
	ctx context.Context,
	op string,
	userID, generationID uuid.UUID,
) (*domain.Generation, error) {
	gen, err := s.store.GetGeneration(ctx, generationID)
	if err != nil {
		return nil, NewGenerationServiceError(op, "failed to load generation", err)
	}
	if gen.UserID != userID {
		logger.FromContextOrDefault(ctx, s.logger).Warn("generation access denied",
			slog.String("operation", op),
			slog.String("generation_id", generationID.String()),
			slog.String("user_id", userID.String()))
		return nil, ErrUnauthorized
	}
	return gen, nil
}

// ClampPageSize applies the default and maximum page sizes.
func ClampPageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

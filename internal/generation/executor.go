package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent is the number of items of one generation run at once.
const DefaultMaxConcurrent = 3

// Executor drives a generation through its pending items in batches.
//
// Abort is cooperative: the flag is read before every batch (and by the
// ModelClient before every call), so a batch that already started runs to
// completion.
type Executor struct {
	store         store.GenerationStore
	runner        ItemRunner
	monitor       CancellationMonitor
	maxConcurrent int
	logger        *slog.Logger
	now           func() time.Time

	// onBatchSettled is called after each batch has fully settled.
	onBatchSettled func(batch int)
}

// NewExecutor creates an Executor. A maxConcurrent of zero selects
// DefaultMaxConcurrent.
func NewExecutor(
	s store.GenerationStore,
	runner ItemRunner,
	monitor CancellationMonitor,
	maxConcurrent int,
	log *slog.Logger,
) (*Executor, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store cannot be nil", ErrInvalidConfig)
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: item runner cannot be nil", ErrInvalidConfig)
	}
	if monitor == nil {
		return nil, fmt.Errorf("%w: monitor cannot be nil", ErrInvalidConfig)
	}
	if maxConcurrent < 0 {
		return nil, fmt.Errorf("%w: max concurrent cannot be negative", ErrInvalidConfig)
	}
	if maxConcurrent == 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = slog.Default()
	}

	return &Executor{
		store:         s,
		runner:        runner,
		monitor:       monitor,
		maxConcurrent: maxConcurrent,
		logger:        log.With("component", "executor"),
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run executes every item of the generation that is pending when the run
// starts. Items that are retried while a run is active are not picked up by
// that run; the retry submits a run of its own.
//
// A returned error means the run could not proceed; the generation is left in
// its last persisted status and is finalized by recovery at the next start.
func (e *Executor) Run(ctx context.Context, generationID uuid.UUID, creds Credentials) error {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("generation_id", generationID.String()))
	ctx = logger.WithLogger(ctx, log)
	persistCtx := context.WithoutCancel(ctx)

	gen, err := e.store.GetGeneration(ctx, generationID)
	if err != nil {
		return fmt.Errorf("failed to load generation: %w", err)
	}

	if err := e.store.MarkGenerationStarted(persistCtx, generationID, e.now()); err != nil {
		return fmt.Errorf("failed to mark generation started: %w", err)
	}

	items, err := e.store.GetItems(ctx, generationID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	pending := domain.PendingItems(items)

	log.Info("generation run started",
		slog.Int("item_count", len(items)),
		slog.Int("pending_count", len(pending)),
		slog.Int("max_concurrent", e.maxConcurrent))

	for batch, start := 0, 0; start < len(pending); batch, start = batch+1, start+e.maxConcurrent {
		if ctx.Err() != nil {
			log.Warn("generation run interrupted", slog.Int("batch", batch))
			return e.Abandon(persistCtx, generationID, InterruptedMessage)
		}

		if e.abortRequested(ctx, log, generationID) {
			log.Info("abort requested, stopping generation", slog.Int("batch", batch))
			return e.abortRemaining(persistCtx, generationID)
		}

		end := min(start+e.maxConcurrent, len(pending))
		if err := e.runBatch(ctx, log, gen, pending[start:end], creds); err != nil {
			// The job stays in_progress so recovery settles the stranded item.
			return fmt.Errorf("batch %d: %w", batch, err)
		}

		if e.onBatchSettled != nil {
			e.onBatchSettled(batch)
		}
	}

	return e.finalize(persistCtx, log, generationID)
}

// runBatch executes items concurrently and waits for all of them. Model
// failures are recorded on the items themselves and never stop the batch.
// An item whose status could not be persisted is left unsettled; the first
// such error is returned once every sibling has finished.
func (e *Executor) runBatch(
	ctx context.Context,
	log *slog.Logger,
	gen *domain.Generation,
	items []*domain.GenerationItem,
	creds Credentials,
) error {
	var g errgroup.Group
	for _, item := range items {
		g.Go(func() error {
			status, err := e.runner.Execute(ctx, gen, item, creds)
			if err != nil {
				log.Error("item execution failed",
					slog.String("item_id", item.ID.String()),
					slog.String("error", err.Error()))
				return fmt.Errorf("item %s: %w", item.ID, err)
			}
			log.Debug("item settled",
				slog.String("item_id", item.ID.String()),
				slog.String("status", string(status)))
			return nil
		})
	}
	return g.Wait()
}

func (e *Executor) abortRequested(ctx context.Context, log *slog.Logger, generationID uuid.UUID) bool {
	aborted, err := e.monitor.AbortRequested(ctx, generationID)
	if err != nil {
		log.Warn("failed to read abort flag, continuing", slog.String("error", err.Error()))
		return false
	}
	return aborted
}

// abortRemaining aborts every item that has not settled and marks the
// generation aborted. Items are re-read so that results of earlier batches
// are kept. This includes items outside this run's snapshot: a generating
// item owned by a concurrent retry run is marked aborted here, and whichever
// run writes that item last wins.
func (e *Executor) abortRemaining(ctx context.Context, generationID uuid.UUID) error {
	items, err := e.store.GetItems(ctx, generationID)
	if err != nil {
		return fmt.Errorf("failed to load items for abort: %w", err)
	}

	now := e.now()
	for _, item := range items {
		if item.Status != domain.ItemStatusPending && item.Status != domain.ItemStatusGenerating {
			continue
		}
		if err := e.store.AbortItem(ctx, item.ID, now); err != nil {
			return fmt.Errorf("failed to abort item %s: %w", item.ID, err)
		}
	}

	if err := e.store.MarkGenerationFinished(ctx, generationID, domain.GenerationStatusAborted, now); err != nil {
		return fmt.Errorf("failed to mark generation aborted: %w", err)
	}
	return nil
}

func (e *Executor) finalize(ctx context.Context, log *slog.Logger, generationID uuid.UUID) error {
	items, err := e.store.GetItems(ctx, generationID)
	if err != nil {
		return fmt.Errorf("failed to reload items: %w", err)
	}

	status := domain.FinalGenerationStatus(items)
	if err := e.store.MarkGenerationFinished(ctx, generationID, status, e.now()); err != nil {
		return fmt.Errorf("failed to mark generation finished: %w", err)
	}

	log.Info("generation run finished", slog.String("status", string(status)))
	return nil
}

// Abandon fails every unsettled item of a generation with reason and
// finalizes the generation. It is used for runs that cannot continue, such as
// runs interrupted by a restart, whose credentials are gone.
func (e *Executor) Abandon(ctx context.Context, generationID uuid.UUID, reason string) error {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("generation_id", generationID.String()))

	items, err := e.store.GetItems(ctx, generationID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}

	now := e.now()
	failed := 0
	for _, item := range items {
		if item.Status != domain.ItemStatusPending && item.Status != domain.ItemStatusGenerating {
			continue
		}
		if err := e.store.FailItem(ctx, item.ID, reason, now); err != nil {
			return fmt.Errorf("failed to fail item %s: %w", item.ID, err)
		}
		item.Status = domain.ItemStatusError
		failed++
	}

	status := domain.FinalGenerationStatus(items)
	if err := e.store.MarkGenerationFinished(ctx, generationID, status, now); err != nil {
		return fmt.Errorf("failed to mark generation finished: %w", err)
	}

	log.Info("generation abandoned",
		slog.String("reason", reason),
		slog.Int("failed_items", failed),
		slog.String("status", string(status)))
	return nil
}

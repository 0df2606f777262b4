package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/generation"
)

var (
	// ErrQueueFull is returned by Submit when the run queue has no free slot.
	ErrQueueFull = errors.New("run queue is full, try again later")

	// ErrRunnerStopped is returned by Submit after Stop was called.
	ErrRunnerStopped = errors.New("runner is stopped")
)

// Run is one request to execute the pending items of a generation.
type Run struct {
	GenerationID uuid.UUID
	Credentials  generation.Credentials
}

// Executor executes and abandons generation runs.
type Executor interface {
	Run(ctx context.Context, generationID uuid.UUID, creds generation.Credentials) error
	Abandon(ctx context.Context, generationID uuid.UUID, reason string) error
}

// RecoveryStore finds generations left unfinished by a previous process.
type RecoveryStore interface {
	FindInterruptedGenerations(ctx context.Context) ([]uuid.UUID, error)
}

// RunnerConfig holds configuration for the runner
type RunnerConfig struct {
	// WorkerCount determines how many generations run at the same time
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory run queue
	QueueSize int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// Runner owns the background execution of generation runs. Runs are queued in
// memory and consumed by a fixed set of workers; Stop cancels in-flight runs
// and waits for them to settle.
type Runner struct {
	executor   Executor
	store      RecoveryStore
	runs       chan Run
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(run Run, err error)

	mu      sync.RWMutex
	stopped bool
}

// NewRunner creates a new Runner
func NewRunner(executor Executor, store RecoveryStore, config RunnerConfig, logger *slog.Logger) *Runner {
	defaults := DefaultRunnerConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		executor:   executor,
		store:      store,
		runs:       make(chan Run, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(run Run, err error) {
			// Default error handler just logs the error
			logger.Error("generation run failed",
				"generation_id", run.GenerationID,
				"error", err)
		},
	}
}

// SetErrorHandler replaces the function called with every failed run. It is
// safe to call while workers are running.
func (r *Runner) SetErrorHandler(handler func(run Run, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errHandler = handler
}

func (r *Runner) errorHandler() func(run Run, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errHandler
}

// Submit queues a run without blocking.
func (r *Runner) Submit(ctx context.Context, run Run) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	select {
	case r.runs <- run:
		r.logger.Debug("run queued", "generation_id", run.GenerationID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start recovers runs interrupted by a previous process and starts the
// workers.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover runs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	return nil
}

// Stop cancels in-flight runs and waits for the workers to exit. Runs still
// queued are left pending and recovered at the next start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
}

// Recover finalizes generations that a previous process left pending or in
// progress. Their credentials were never persisted, so they cannot be resumed:
// unsettled items are failed and can be retried by their owner.
func (r *Runner) Recover(ctx context.Context) error {
	ids, err := r.store.FindInterruptedGenerations(ctx)
	if err != nil {
		return fmt.Errorf("failed to find interrupted generations: %w", err)
	}

	r.logger.Info("recovering interrupted generations", "count", len(ids))

	for _, id := range ids {
		if err := r.executor.Abandon(ctx, id, generation.InterruptedMessage); err != nil {
			r.logger.Error("failed to abandon interrupted generation",
				"generation_id", id,
				"error", err)
		}
	}

	return nil
}

// worker processes runs from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case run := <-r.runs:
			r.process(run, id)
		}
	}
}

func (r *Runner) process(run Run, workerID int) {
	logger := r.logger.With(
		"generation_id", run.GenerationID,
		"worker_id", workerID,
	)

	logger.Info("processing run")

	if err := r.executor.Run(r.ctx, run.GenerationID, run.Credentials); err != nil {
		r.errorHandler()(run, err)
		return
	}

	logger.Info("run finished")
}

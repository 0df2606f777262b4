package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/store"
)

// DefaultModelTimeout bounds a single model call.
const DefaultModelTimeout = 2 * time.Minute

// ItemRunner executes one item of a generation and leaves it terminal.
type ItemRunner interface {
	Execute(ctx context.Context, gen *domain.Generation, item *domain.GenerationItem, creds Credentials) (domain.ItemStatus, error)
}

// ModelClient executes a single generation item against its model backend.
type ModelClient struct {
	store   store.GenerationStore
	backend Backend
	monitor CancellationMonitor
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewModelClient creates a ModelClient. A zero timeout selects
// DefaultModelTimeout.
func NewModelClient(
	s store.GenerationStore,
	backend Backend,
	monitor CancellationMonitor,
	timeout time.Duration,
	log *slog.Logger,
) (*ModelClient, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store cannot be nil", ErrInvalidConfig)
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: backend cannot be nil", ErrInvalidConfig)
	}
	if monitor == nil {
		return nil, fmt.Errorf("%w: monitor cannot be nil", ErrInvalidConfig)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	if timeout == 0 {
		timeout = DefaultModelTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &ModelClient{
		store:   s,
		backend: backend,
		monitor: monitor,
		timeout: timeout,
		logger:  log.With("component", "model_client"),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// callResult is the outcome of one backend call.
type callResult struct {
	html     string
	err      error
	panicked bool
	panicVal any
	timedOut bool
}

// Execute runs item to a terminal status and returns that status. An error is
// returned only when a status could not be persisted.
//
// Writes are detached from ctx cancellation: when the server stops while a
// call is in flight the item is still recorded as failed.
func (c *ModelClient) Execute(
	ctx context.Context,
	gen *domain.Generation,
	item *domain.GenerationItem,
	creds Credentials,
) (domain.ItemStatus, error) {
	log := logger.FromContextOrDefault(ctx, c.logger).With(
		slog.String("generation_id", gen.ID.String()),
		slog.String("item_id", item.ID.String()),
		slog.String("model_id", item.ModelID),
	)
	persistCtx := context.WithoutCancel(ctx)

	if err := c.store.MarkItemGenerating(persistCtx, item.ID, c.now()); err != nil {
		return item.Status, fmt.Errorf("failed to mark item generating: %w", err)
	}

	aborted, err := c.monitor.AbortRequested(ctx, gen.ID)
	if err != nil {
		log.Warn("failed to read abort flag, continuing", slog.String("error", err.Error()))
	}
	if aborted {
		log.Debug("abort requested before model call")
		return c.finish(persistCtx, item, domain.ItemStatusAborted, "", "")
	}

	started := time.Now()
	res := c.call(ctx, Request{
		ModelID:      item.ModelID,
		SystemPrompt: SystemPrompt,
		UserPrompt:   gen.Prompt,
		Credentials:  creds,
	})
	elapsed := slog.Duration("elapsed", time.Since(started))

	switch {
	case res.panicked:
		msg := ClassifyFailure(res.panicVal)
		log.Error("model backend panicked", slog.Any("panic", res.panicVal), elapsed)
		return c.finish(persistCtx, item, domain.ItemStatusError, "", msg)

	case res.err == nil:
		log.Info("model call completed", elapsed)
		return c.finish(persistCtx, item, domain.ItemStatusCompleted, StripCodeFences(res.html), "")

	case res.timedOut:
		log.Warn("model call timed out", elapsed, slog.Duration("timeout", c.timeout))
		return c.finish(persistCtx, item, domain.ItemStatusError, "", TimeoutMessage(c.timeout))

	case ctx.Err() != nil:
		log.Warn("model call interrupted", elapsed, slog.String("error", res.err.Error()))
		return c.finish(persistCtx, item, domain.ItemStatusError, "", InterruptedMessage)

	default:
		msg := ClassifyFailure(res.err)
		log.Warn("model call failed", elapsed, slog.String("error", res.err.Error()))
		return c.finish(persistCtx, item, domain.ItemStatusError, "", msg)
	}
}

// call invokes the backend under the configured timeout and converts a
// panic into a result.
func (c *ModelClient) call(ctx context.Context, req Request) (res callResult) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			res = callResult{panicked: true, panicVal: p}
		}
	}()

	html, err := c.backend.Generate(callCtx, req)
	if err != nil {
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		return callResult{err: err, timedOut: timedOut}
	}
	return callResult{html: html}
}

func (c *ModelClient) finish(
	ctx context.Context,
	item *domain.GenerationItem,
	status domain.ItemStatus,
	html, message string,
) (domain.ItemStatus, error) {
	now := c.now()

	var err error
	switch status {
	case domain.ItemStatusCompleted:
		err = c.store.CompleteItem(ctx, item.ID, html, now)
	case domain.ItemStatusAborted:
		err = c.store.AbortItem(ctx, item.ID, now)
	default:
		err = c.store.FailItem(ctx, item.ID, message, now)
	}
	if err != nil {
		return domain.ItemStatusGenerating, fmt.Errorf("failed to mark item %s: %w", status, err)
	}

	return status, nil
}

var _ ItemRunner = (*ModelClient)(nil)

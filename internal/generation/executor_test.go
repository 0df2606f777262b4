package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/mocks"
)

// concurrencyProbe is a backend that records the peak number of concurrent
// calls and fails for models whose ID contains "fail".
type concurrencyProbe struct {
	active atomic.Int32
	peak   atomic.Int32
	calls  atomic.Int32
	delay  time.Duration
}

func (p *concurrencyProbe) Generate(ctx context.Context, req Request) (string, error) {
	p.calls.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if strings.Contains(req.ModelID, "fail") {
		return "", &APICallError{StatusCode: 500, ResponseBody: `{"error":{"message":"provider exploded"}}`}
	}
	return "<html>" + req.ModelID + "</html>", nil
}

func newTestExecutor(t *testing.T, s *mocks.MemoryStore, b Backend, maxConcurrent int) *Executor {
	t.Helper()

	monitor := NewStoreMonitor(s)
	client, err := NewModelClient(s, b, monitor, time.Second, discardLogger())
	require.NoError(t, err)
	exec, err := NewExecutor(s, client, monitor, maxConcurrent, discardLogger())
	require.NoError(t, err)
	return exec
}

func TestNewExecutorValidation(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	m := NewStoreMonitor(s)
	c, err := NewModelClient(s, namedBackend("x"), m, 0, nil)
	require.NoError(t, err)

	_, err = NewExecutor(nil, c, m, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewExecutor(s, nil, m, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewExecutor(s, c, nil, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewExecutor(s, c, m, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	e, err := NewExecutor(s, c, m, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxConcurrent, e.maxConcurrent)
}

func TestExecutorRunCompletesAllItems(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, _ := seedGeneration(t, s, "a/one", "b/two", "c/three", "d/four", "e/five")

	probe := &concurrencyProbe{delay: 10 * time.Millisecond}
	exec := newTestExecutor(t, s, probe, 3)

	var batches []int
	exec.onBatchSettled = func(batch int) { batches = append(batches, batch) }

	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{APIKey: "k"}))

	assert.Equal(t, int32(5), probe.calls.Load())
	assert.LessOrEqual(t, probe.peak.Load(), int32(3))
	assert.Equal(t, []int{0, 1}, batches)

	for _, status := range itemStatuses(t, s, gen.ID) {
		assert.Equal(t, domain.ItemStatusCompleted, status)
	}

	stored := s.Generation(gen.ID)
	assert.Equal(t, domain.GenerationStatusCompleted, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)
}

func TestExecutorRunWithFailuresStillCompletes(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/ok", "b/fail", "c/fail")

	exec := newTestExecutor(t, s, &concurrencyProbe{}, 3)
	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Equal(t, domain.ItemStatusCompleted, s.Item(items[0].ID).Status)
	failed := s.Item(items[1].ID)
	assert.Equal(t, domain.ItemStatusError, failed.Status)
	assert.Equal(t, "provider exploded", *failed.Error)

	assert.Equal(t, domain.GenerationStatusCompleted, s.Generation(gen.ID).Status)
}

func TestExecutorRunMixedOutcomesInOneBatch(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/fast", "b/slow", "c/limited")

	b := BackendFunc(func(ctx context.Context, req Request) (string, error) {
		switch req.ModelID {
		case "a/fast":
			return "```html\n<html>ok</html>\n```", nil
		case "b/slow":
			<-ctx.Done()
			return "", ctx.Err()
		default:
			return "", &APICallError{StatusCode: 429, ResponseBody: `{"error":{"message":"rate limited"}}`}
		}
	})

	monitor := NewStoreMonitor(s)
	timeout := 30 * time.Millisecond
	client, err := NewModelClient(s, b, monitor, timeout, discardLogger())
	require.NoError(t, err)
	exec, err := NewExecutor(s, client, monitor, 3, discardLogger())
	require.NoError(t, err)

	var batches []int
	exec.onBatchSettled = func(batch int) { batches = append(batches, batch) }

	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))
	assert.Equal(t, []int{0}, batches)

	fast := s.Item(items[0].ID)
	assert.Equal(t, domain.ItemStatusCompleted, fast.Status)
	assert.Equal(t, "<html>ok</html>", *fast.HTML)

	slow := s.Item(items[1].ID)
	assert.Equal(t, domain.ItemStatusError, slow.Status)
	assert.Equal(t, TimeoutMessage(timeout), *slow.Error)
	assert.Nil(t, slow.HTML)

	limited := s.Item(items[2].ID)
	assert.Equal(t, domain.ItemStatusError, limited.Status)
	assert.Equal(t, "rate limited", *limited.Error)

	assert.Equal(t, domain.GenerationStatusCompleted, s.Generation(gen.ID).Status)
}

func TestExecutorRunAllFailedIsCompleted(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, _ := seedGeneration(t, s, "a/fail", "b/fail")

	exec := newTestExecutor(t, s, &concurrencyProbe{}, 3)
	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Equal(t, []domain.ItemStatus{domain.ItemStatusError, domain.ItemStatusError}, itemStatuses(t, s, gen.ID))
	assert.Equal(t, domain.GenerationStatusCompleted, s.Generation(gen.ID).Status)
}

func TestExecutorAbortBeforeStart(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, _ := seedGeneration(t, s, "a/one", "b/two", "c/three", "d/four")
	require.NoError(t, s.RequestAbort(context.Background(), gen.ID))

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 3)
	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Zero(t, probe.calls.Load())
	for _, status := range itemStatuses(t, s, gen.ID) {
		assert.Equal(t, domain.ItemStatusAborted, status)
	}
	stored := s.Generation(gen.ID)
	assert.Equal(t, domain.GenerationStatusAborted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestExecutorAbortBetweenBatchesKeepsSettledItems(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two", "c/three", "d/four", "e/five")

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 3)
	exec.onBatchSettled = func(batch int) {
		if batch == 0 {
			require.NoError(t, s.RequestAbort(context.Background(), gen.ID))
		}
	}

	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Equal(t, int32(3), probe.calls.Load())
	for _, item := range items[:3] {
		assert.Equal(t, domain.ItemStatusCompleted, s.Item(item.ID).Status, "first batch keeps its results")
	}
	for _, item := range items[3:] {
		assert.Equal(t, domain.ItemStatusAborted, s.Item(item.ID).Status)
	}
	assert.Equal(t, domain.GenerationStatusAborted, s.Generation(gen.ID).Status)
}

func TestExecutorAbortObservedByInFlightBatchMember(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, _ := seedGeneration(t, s, "a/one", "b/two")

	// The batch-level check sees no abort; the per-item checks do.
	var reads atomic.Int32
	s.IsAbortRequestedFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
		return reads.Add(1) > 1, nil
	}

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 3)
	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Zero(t, probe.calls.Load())
	assert.Equal(t, []domain.ItemStatus{domain.ItemStatusAborted, domain.ItemStatusAborted}, itemStatuses(t, s, gen.ID))
	assert.Equal(t, domain.GenerationStatusAborted, s.Generation(gen.ID).Status)
}

func TestExecutorRunOnlyPicksUpPendingItems(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two")
	require.NoError(t, s.CompleteItem(context.Background(), items[0].ID, "<html>kept</html>", time.Now()))

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 3)
	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Equal(t, int32(1), probe.calls.Load())
	assert.Equal(t, "<html>kept</html>", *s.Item(items[0].ID).HTML)
	assert.Equal(t, domain.ItemStatusCompleted, s.Item(items[1].ID).Status)
}

func TestExecutorRunDoesNotRefreshPendingSetBetweenBatches(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two")

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 1)
	exec.onBatchSettled = func(batch int) {
		if batch == 0 {
			// A retry landing mid-run resets an item this run already settled.
			require.NoError(t, s.ResetItem(context.Background(), items[0].ID))
		}
	}

	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))

	assert.Equal(t, int32(2), probe.calls.Load())
	assert.Equal(t, domain.ItemStatusPending, s.Item(items[0].ID).Status)
	assert.Equal(t, domain.ItemStatusCompleted, s.Item(items[1].ID).Status)
}

func TestExecutorAbortReachesItemsOfConcurrentRuns(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two")
	ctx := context.Background()

	// items[0] belongs to a retry run that is still calling its model.
	require.NoError(t, s.MarkItemGenerating(ctx, items[0].ID, time.Now()))
	require.NoError(t, s.RequestAbort(ctx, gen.ID))

	exec := newTestExecutor(t, s, &concurrencyProbe{}, 3)
	require.NoError(t, exec.Run(ctx, gen.ID, Credentials{}))

	assert.Equal(t, domain.ItemStatusAborted, s.Item(items[0].ID).Status)
	assert.Equal(t, domain.ItemStatusAborted, s.Item(items[1].ID).Status)
	assert.Equal(t, domain.GenerationStatusAborted, s.Generation(gen.ID).Status)

	// The retry run settling afterwards overwrites the abort.
	require.NoError(t, s.CompleteItem(ctx, items[0].ID, "<html></html>", time.Now()))
	assert.Equal(t, domain.ItemStatusCompleted, s.Item(items[0].ID).Status)
}

func TestExecutorRunMissingGeneration(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	exec := newTestExecutor(t, s, &concurrencyProbe{}, 3)

	err := exec.Run(context.Background(), uuid.New(), Credentials{})
	require.Error(t, err)
}

func TestExecutorRunItemPersistenceErrorLeavesGenerationForRecovery(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two", "c/three", "d/four")
	s.FailWith("MarkItemGenerating", errors.New("db down"))

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 2)

	var batches []int
	exec.onBatchSettled = func(batch int) { batches = append(batches, batch) }

	err := exec.Run(context.Background(), gen.ID, Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	// No further batch starts and the generation is not finalized.
	assert.Empty(t, batches)
	assert.Zero(t, probe.calls.Load())
	assert.Equal(t, domain.GenerationStatusInProgress, s.Generation(gen.ID).Status)
	for _, item := range items {
		assert.Equal(t, domain.ItemStatusPending, s.Item(item.ID).Status)
	}

	s.FailWith("MarkItemGenerating", nil)
	interrupted, err := s.FindInterruptedGenerations(context.Background())
	require.NoError(t, err)
	assert.Contains(t, interrupted, gen.ID)

	require.NoError(t, exec.Abandon(context.Background(), gen.ID, InterruptedMessage))
	assert.Equal(t, domain.GenerationStatusCompleted, s.Generation(gen.ID).Status)
	for _, item := range items {
		stored := s.Item(item.ID)
		assert.Equal(t, domain.ItemStatusError, stored.Status)
		assert.True(t, stored.Status.CanRetry())
	}
}

func TestExecutorRetriedItemOfAbortedGenerationIsAbortedAgain(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two")
	require.NoError(t, s.RequestAbort(context.Background(), gen.ID))

	probe := &concurrencyProbe{}
	exec := newTestExecutor(t, s, probe, 3)
	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{}))
	require.Equal(t, domain.GenerationStatusAborted, s.Generation(gen.ID).Status)

	// Retry resets the item but leaves the abort flag set.
	require.NoError(t, s.ResetItem(context.Background(), items[0].ID))
	require.Equal(t, domain.ItemStatusPending, s.Item(items[0].ID).Status)
	require.True(t, s.Generation(gen.ID).AbortRequested)

	require.NoError(t, exec.Run(context.Background(), gen.ID, Credentials{APIKey: "k"}))

	assert.Zero(t, probe.calls.Load())
	assert.Equal(t, domain.ItemStatusAborted, s.Item(items[0].ID).Status)
	assert.Equal(t, domain.ItemStatusAborted, s.Item(items[1].ID).Status)
	assert.Equal(t, domain.GenerationStatusAborted, s.Generation(gen.ID).Status)
}

func TestExecutorShutdownAbandonsRemainingItems(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, _ := seedGeneration(t, s, "a/one", "b/two", "c/three", "d/four")

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	b := BackendFunc(func(callCtx context.Context, req Request) (string, error) {
		once.Do(cancel)
		<-callCtx.Done()
		return "", callCtx.Err()
	})

	exec := newTestExecutor(t, s, b, 2)
	require.NoError(t, exec.Run(ctx, gen.ID, Credentials{}))

	items, err := s.GetItems(context.Background(), gen.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, domain.ItemStatusError, item.Status)
		assert.Equal(t, InterruptedMessage, *item.Error)
	}
	assert.Equal(t, domain.GenerationStatusCompleted, s.Generation(gen.ID).Status)
}

func TestExecutorAbandon(t *testing.T) {
	t.Parallel()

	s := mocks.NewMemoryStore()
	gen, items := seedGeneration(t, s, "a/one", "b/two", "c/three")
	now := time.Now()
	require.NoError(t, s.MarkGenerationStarted(context.Background(), gen.ID, now))
	require.NoError(t, s.CompleteItem(context.Background(), items[0].ID, "<html/>", now))
	require.NoError(t, s.MarkItemGenerating(context.Background(), items[1].ID, now))

	exec := newTestExecutor(t, s, &concurrencyProbe{}, 3)
	require.NoError(t, exec.Abandon(context.Background(), gen.ID, InterruptedMessage))

	assert.Equal(t, domain.ItemStatusCompleted, s.Item(items[0].ID).Status)
	for _, item := range items[1:] {
		stored := s.Item(item.ID)
		assert.Equal(t, domain.ItemStatusError, stored.Status)
		assert.Equal(t, InterruptedMessage, *stored.Error)
	}
	assert.Equal(t, domain.GenerationStatusCompleted, s.Generation(gen.ID).Status)
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/mocks"
	"github.com/uibattles/uibattles-api/internal/task"
)

// fakeQueue records submitted runs and optionally rejects them.
type fakeQueue struct {
	mu   sync.Mutex
	runs []task.Run
	err  error
}

func (q *fakeQueue) Submit(ctx context.Context, run task.Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.runs = append(q.runs, run)
	return nil
}

func (q *fakeQueue) submitted() []task.Run {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]task.Run(nil), q.runs...)
}

// fakeAbandoner records abandon calls.
type fakeAbandoner struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]string
	onCalls func(id uuid.UUID)
}

func (a *fakeAbandoner) Abandon(ctx context.Context, id uuid.UUID, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls == nil {
		a.calls = make(map[uuid.UUID]string)
	}
	a.calls[id] = reason
	if a.onCalls != nil {
		a.onCalls(id)
	}
	return nil
}

func (a *fakeAbandoner) reason(id uuid.UUID) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.calls[id]
	return r, ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// seed stores a generation owned by userID with one item per status.
func seed(
	t *testing.T,
	s *mocks.MemoryStore,
	userID uuid.UUID,
	genStatus domain.GenerationStatus,
	itemStatuses ...domain.ItemStatus,
) (*domain.Generation, []*domain.GenerationItem) {
	t.Helper()

	models := make([]string, len(itemStatuses))
	for i := range itemStatuses {
		models[i] = "vendor/model-" + string(rune('a'+i))
	}
	if len(models) == 0 {
		models = []string{"vendor/model-a"}
		itemStatuses = []domain.ItemStatus{domain.ItemStatusPending}
	}

	gen, items, err := domain.NewGeneration(userID, "Battle", "Build a pricing page", models)
	require.NoError(t, err)
	gen.Status = genStatus

	now := time.Now().UTC()
	for i, item := range items {
		item.Status = itemStatuses[i]
		switch item.Status {
		case domain.ItemStatusCompleted:
			html := "<html>" + item.ModelID + "</html>"
			item.HTML = &html
			item.CompletedAt = &now
		case domain.ItemStatusError:
			msg := "provider exploded"
			item.Error = &msg
			item.CompletedAt = &now
		case domain.ItemStatusAborted:
			item.CompletedAt = &now
		}
	}
	s.Seed(gen, items...)
	return gen, items
}

package generation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seedGeneration(t *testing.T, s *mocks.MemoryStore, models ...string) (*domain.Generation, []*domain.GenerationItem) {
	t.Helper()

	gen, items, err := domain.NewGeneration(uuid.New(), "Battle", "Build a landing page", models)
	require.NoError(t, err)
	require.NoError(t, s.CreateGeneration(context.Background(), gen, items))
	return gen, items
}

func itemStatuses(t *testing.T, s *mocks.MemoryStore, generationID uuid.UUID) []domain.ItemStatus {
	t.Helper()

	items, err := s.GetItems(context.Background(), generationID)
	require.NoError(t, err)
	out := make([]domain.ItemStatus, 0, len(items))
	for _, it := range items {
		out = append(out, it.Status)
	}
	return out
}

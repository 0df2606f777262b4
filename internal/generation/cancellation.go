package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/store"
)

// CancellationMonitor reports whether the owner asked to stop a generation.
// Only the persisted flag is consulted, so an abort requested through any
// process is observed.
type CancellationMonitor interface {
	AbortRequested(ctx context.Context, generationID uuid.UUID) (bool, error)
}

// StoreMonitor is a CancellationMonitor reading the abort flag from the store.
type StoreMonitor struct {
	store store.GenerationStore
}

// NewStoreMonitor creates a StoreMonitor.
func NewStoreMonitor(s store.GenerationStore) *StoreMonitor {
	return &StoreMonitor{store: s}
}

// AbortRequested implements CancellationMonitor.
func (m *StoreMonitor) AbortRequested(ctx context.Context, generationID uuid.UUID) (bool, error) {
	return m.store.IsAbortRequested(ctx, generationID)
}

var _ CancellationMonitor = (*StoreMonitor)(nil)

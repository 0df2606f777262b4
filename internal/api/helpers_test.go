package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/api/shared"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/generation"
	"github.com/uibattles/uibattles-api/internal/service"
)

// mockGenerationService is a mock implementation of the GenerationService interface.
type mockGenerationService struct {
	enqueueFn   func(ctx context.Context, userID uuid.UUID, req service.EnqueueRequest) (*domain.Generation, error)
	abortFn     func(ctx context.Context, userID, generationID uuid.UUID) error
	retryItemFn func(ctx context.Context, userID, itemID uuid.UUID, creds generation.Credentials) (*domain.GenerationItem, error)
	getStatusFn func(ctx context.Context, userID, generationID uuid.UUID) (*domain.GenerationStatusView, error)
	listFn      func(ctx context.Context, userID uuid.UUID, cursor *uuid.UUID, limit int) (*service.UserGenerationsPage, error)
}

func (m *mockGenerationService) Enqueue(
	ctx context.Context,
	userID uuid.UUID,
	req service.EnqueueRequest,
) (*domain.Generation, error) {
	return m.enqueueFn(ctx, userID, req)
}

func (m *mockGenerationService) Abort(ctx context.Context, userID, generationID uuid.UUID) error {
	return m.abortFn(ctx, userID, generationID)
}

func (m *mockGenerationService) RetryItem(
	ctx context.Context,
	userID, itemID uuid.UUID,
	creds generation.Credentials,
) (*domain.GenerationItem, error) {
	return m.retryItemFn(ctx, userID, itemID, creds)
}

func (m *mockGenerationService) GetStatus(
	ctx context.Context,
	userID, generationID uuid.UUID,
) (*domain.GenerationStatusView, error) {
	return m.getStatusFn(ctx, userID, generationID)
}

func (m *mockGenerationService) ListUserGenerations(
	ctx context.Context,
	userID uuid.UUID,
	cursor *uuid.UUID,
	limit int,
) (*service.UserGenerationsPage, error) {
	return m.listFn(ctx, userID, cursor, limit)
}

// mockGalleryService is a mock implementation of the GalleryService interface.
type mockGalleryService struct {
	listFn          func(ctx context.Context, req service.GalleryRequest) (*service.GalleryPage, error)
	getDetailFn     func(ctx context.Context, generationID uuid.UUID) (*service.GenerationDetail, error)
	toggleLikeFn    func(ctx context.Context, userID, generationID uuid.UUID) (domain.LikeStatus, error)
	getLikeStatusFn func(ctx context.Context, viewerID *uuid.UUID, generationID uuid.UUID) (domain.LikeStatus, error)
	incrementViewFn func(ctx context.Context, generationID uuid.UUID) (int, error)
}

func (m *mockGalleryService) List(ctx context.Context, req service.GalleryRequest) (*service.GalleryPage, error) {
	return m.listFn(ctx, req)
}

func (m *mockGalleryService) GetDetail(ctx context.Context, generationID uuid.UUID) (*service.GenerationDetail, error) {
	return m.getDetailFn(ctx, generationID)
}

func (m *mockGalleryService) ToggleLike(ctx context.Context, userID, generationID uuid.UUID) (domain.LikeStatus, error) {
	return m.toggleLikeFn(ctx, userID, generationID)
}

func (m *mockGalleryService) GetLikeStatus(
	ctx context.Context,
	viewerID *uuid.UUID,
	generationID uuid.UUID,
) (domain.LikeStatus, error) {
	return m.getLikeStatusFn(ctx, viewerID, generationID)
}

func (m *mockGalleryService) IncrementView(ctx context.Context, generationID uuid.UUID) (int, error) {
	return m.incrementViewFn(ctx, generationID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRequest builds a request with an optional JSON body, chi path
// parameter and authenticated user.
func newRequest(method, target, body string, userID uuid.UUID, param, value string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if param != "" {
		r = withURLParam(r, param, value)
	}
	if userID != uuid.Nil {
		r = r.WithContext(shared.WithUserID(r.Context(), userID))
	}
	return r
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/service"
)

func TestGalleryList(t *testing.T) {
	viewer := uuid.New()
	cursor := uuid.New()

	t.Run("parses query parameters", func(t *testing.T) {
		var got service.GalleryRequest
		svc := &mockGalleryService{
			listFn: func(ctx context.Context, req service.GalleryRequest) (*service.GalleryPage, error) {
				got = req
				return &service.GalleryPage{Generations: []domain.GalleryCard{}}, nil
			},
		}
		h := NewGalleryHandler(svc, discardLogger())

		w := httptest.NewRecorder()
		target := "/api/generations?sort=most_liked&search=%20pricing%20&limit=12&cursor=" + cursor.String()
		h.List(w, newRequest(http.MethodGet, target, "", viewer, "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.GallerySortMostLiked, got.Sort)
		assert.Equal(t, "pricing", got.Search)
		assert.Equal(t, 12, got.Limit)
		require.NotNil(t, got.Cursor)
		assert.Equal(t, cursor, *got.Cursor)
		require.NotNil(t, got.ViewerID)
		assert.Equal(t, viewer, *got.ViewerID)
	})

	t.Run("anonymous viewer and defaults", func(t *testing.T) {
		var got service.GalleryRequest
		svc := &mockGalleryService{
			listFn: func(ctx context.Context, req service.GalleryRequest) (*service.GalleryPage, error) {
				got = req
				return &service.GalleryPage{Generations: []domain.GalleryCard{}}, nil
			},
		}
		h := NewGalleryHandler(svc, discardLogger())

		w := httptest.NewRecorder()
		h.List(w, newRequest(http.MethodGet, "/api/generations?sort=bogus", "", uuid.Nil, "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, got.ViewerID)
		assert.Nil(t, got.Cursor)
		assert.Zero(t, got.Limit)
		assert.Equal(t, domain.GallerySortRecent, got.Sort)
		assert.JSONEq(t, `{"generations":[],"nextCursor":null,"hasMore":false}`, w.Body.String())
	})

	t.Run("service failure", func(t *testing.T) {
		svc := &mockGalleryService{
			listFn: func(ctx context.Context, req service.GalleryRequest) (*service.GalleryPage, error) {
				return nil, errors.New("query failed")
			},
		}
		h := NewGalleryHandler(svc, discardLogger())

		w := httptest.NewRecorder()
		h.List(w, newRequest(http.MethodGet, "/api/generations", "", uuid.Nil, "", ""))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Failed to fetch generations")
	})
}

func TestGalleryDetail(t *testing.T) {
	genID := uuid.New()
	html := "<html>ok</html>"

	svc := &mockGalleryService{
		getDetailFn: func(ctx context.Context, id uuid.UUID) (*service.GenerationDetail, error) {
			if id != genID {
				return nil, service.ErrNotFound
			}
			return &service.GenerationDetail{
				Generation: service.DetailGeneration{ID: genID, Name: "Landing", CreatedAt: time.Now().UTC()},
				Items:      []service.DetailItem{{ID: uuid.New(), ModelID: "a/one", ModelName: "a/one", HTML: &html}},
			}, nil
		},
	}
	h := NewGalleryHandler(svc, discardLogger())

	w := httptest.NewRecorder()
	h.Detail(w, newRequest(http.MethodGet, "/api/generations/x", "", uuid.Nil, "id", genID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[service.GenerationDetail](t, w)
	assert.Equal(t, "Landing", detail.Generation.Name)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, html, *detail.Items[0].HTML)

	w = httptest.NewRecorder()
	h.Detail(w, newRequest(http.MethodGet, "/api/generations/x", "", uuid.Nil, "id", uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggleLike(t *testing.T) {
	userID := uuid.New()
	genID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &mockGalleryService{
			toggleLikeFn: func(ctx context.Context, uid, gid uuid.UUID) (domain.LikeStatus, error) {
				assert.Equal(t, userID, uid)
				assert.Equal(t, genID, gid)
				return domain.LikeStatus{Liked: true, LikesCount: 4}, nil
			},
		}
		h := NewGalleryHandler(svc, discardLogger())

		w := httptest.NewRecorder()
		h.ToggleLike(w, newRequest(http.MethodPost, "/api/generations/x/like", "", userID, "id", genID.String()))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"liked":true,"likesCount":4}`, w.Body.String())
	})

	t.Run("requires authentication", func(t *testing.T) {
		h := NewGalleryHandler(&mockGalleryService{}, discardLogger())

		w := httptest.NewRecorder()
		h.ToggleLike(w, newRequest(http.MethodPost, "/api/generations/x/like", "", uuid.Nil, "id", genID.String()))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown generation", func(t *testing.T) {
		svc := &mockGalleryService{
			toggleLikeFn: func(ctx context.Context, uid, gid uuid.UUID) (domain.LikeStatus, error) {
				return domain.LikeStatus{}, service.ErrNotFound
			},
		}
		h := NewGalleryHandler(svc, discardLogger())

		w := httptest.NewRecorder()
		h.ToggleLike(w, newRequest(http.MethodPost, "/api/generations/x/like", "", userID, "id", genID.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLikeStatus(t *testing.T) {
	viewer := uuid.New()
	genID := uuid.New()

	svc := &mockGalleryService{
		getLikeStatusFn: func(ctx context.Context, v *uuid.UUID, gid uuid.UUID) (domain.LikeStatus, error) {
			if v == nil {
				return domain.LikeStatus{}, nil
			}
			return domain.LikeStatus{Liked: true, LikesCount: 2}, nil
		},
	}
	h := NewGalleryHandler(svc, discardLogger())

	w := httptest.NewRecorder()
	h.LikeStatus(w, newRequest(http.MethodGet, "/api/generations/x/like", "", uuid.Nil, "id", genID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"liked":false,"likesCount":0}`, w.Body.String())

	w = httptest.NewRecorder()
	h.LikeStatus(w, newRequest(http.MethodGet, "/api/generations/x/like", "", viewer, "id", genID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"liked":true,"likesCount":2}`, w.Body.String())
}

func TestView(t *testing.T) {
	genID := uuid.New()

	svc := &mockGalleryService{
		incrementViewFn: func(ctx context.Context, gid uuid.UUID) (int, error) {
			if gid != genID {
				return 0, service.ErrNotFound
			}
			return 8, nil
		},
	}
	h := NewGalleryHandler(svc, discardLogger())

	w := httptest.NewRecorder()
	h.View(w, newRequest(http.MethodPost, "/api/generations/x/view", "", uuid.Nil, "id", genID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	var resp ViewResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ViewResponse{Success: true, ViewCount: 8}, resp)

	w = httptest.NewRecorder()
	h.View(w, newRequest(http.MethodPost, "/api/generations/x/view", "", uuid.Nil, "id", "nope"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

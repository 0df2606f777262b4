package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/store"
)

// MemoryStore is a thread-safe in-memory implementation of
// store.GenerationStore, store.GalleryStore and store.LikeStore. It mirrors
// the ordering and filtering rules of the Postgres implementation so that
// service tests exercise the same semantics.
//
// Reads return copies; mutating a returned value never changes the store.
type MemoryStore struct {
	mu          sync.RWMutex
	generations map[uuid.UUID]*domain.Generation
	items       map[uuid.UUID]*domain.GenerationItem
	likes       map[likeKey]time.Time
	failures    map[string]error
	calls       map[string]int

	// IsAbortRequestedFn overrides IsAbortRequested when set.
	IsAbortRequestedFn func(ctx context.Context, id uuid.UUID) (bool, error)
}

type likeKey struct {
	generationID uuid.UUID
	userID       uuid.UUID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		generations: make(map[uuid.UUID]*domain.Generation),
		items:       make(map[uuid.UUID]*domain.GenerationItem),
		likes:       make(map[likeKey]time.Time),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// FailWith makes every subsequent call of method return err. A nil err
// clears the failure.
func (s *MemoryStore) FailWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Calls returns how many times method was called.
func (s *MemoryStore) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

// enter records a call and returns the injected failure, if any. The caller
// must hold the lock.
func (s *MemoryStore) enter(method string) error {
	s.calls[method]++
	return s.failures[method]
}

// Seed inserts a generation and items as they are, bypassing validation.
func (s *MemoryStore) Seed(gen *domain.Generation, items ...*domain.GenerationItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := *gen
	s.generations[gen.ID] = &g
	for _, item := range items {
		it := *item
		s.items[item.ID] = &it
	}
}

// Generation returns a copy of the stored generation, or nil.
func (s *MemoryStore) Generation(id uuid.UUID) *domain.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.generations[id]
	if !ok {
		return nil
	}
	cp := *g
	return &cp
}

// Item returns a copy of the stored item, or nil.
func (s *MemoryStore) Item(id uuid.UUID) *domain.GenerationItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	cp := *it
	return &cp
}

// CreateGeneration implements store.GenerationStore.
func (s *MemoryStore) CreateGeneration(ctx context.Context, gen *domain.Generation, items []*domain.GenerationItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateGeneration"); err != nil {
		return err
	}
	if _, exists := s.generations[gen.ID]; exists {
		return store.ErrDuplicate
	}
	g := *gen
	s.generations[gen.ID] = &g
	for _, item := range items {
		it := *item
		s.items[item.ID] = &it
	}
	return nil
}

// GetGeneration implements store.GenerationStore.
func (s *MemoryStore) GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetGeneration"); err != nil {
		return nil, err
	}
	g, ok := s.generations[id]
	if !ok {
		return nil, store.ErrGenerationNotFound
	}
	cp := *g
	return &cp, nil
}

// GetItems implements store.GenerationStore.
func (s *MemoryStore) GetItems(ctx context.Context, generationID uuid.UUID) ([]*domain.GenerationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetItems"); err != nil {
		return nil, err
	}
	return s.itemsOf(generationID), nil
}

func (s *MemoryStore) itemsOf(generationID uuid.UUID) []*domain.GenerationItem {
	out := make([]*domain.GenerationItem, 0)
	for _, it := range s.items {
		if it.GenerationID == generationID {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// GetItem implements store.GenerationStore.
func (s *MemoryStore) GetItem(ctx context.Context, itemID uuid.UUID) (*domain.GenerationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetItem"); err != nil {
		return nil, err
	}
	it, ok := s.items[itemID]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *MemoryStore) updateGeneration(method string, id uuid.UUID, fn func(g *domain.Generation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(method); err != nil {
		return err
	}
	g, ok := s.generations[id]
	if !ok {
		return store.ErrGenerationNotFound
	}
	fn(g)
	return nil
}

func (s *MemoryStore) updateItem(method string, id uuid.UUID, fn func(it *domain.GenerationItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(method); err != nil {
		return err
	}
	it, ok := s.items[id]
	if !ok {
		return store.ErrItemNotFound
	}
	fn(it)
	return nil
}

// MarkGenerationStarted implements store.GenerationStore.
func (s *MemoryStore) MarkGenerationStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.updateGeneration("MarkGenerationStarted", id, func(g *domain.Generation) {
		g.Status = domain.GenerationStatusInProgress
		g.StartedAt = &at
		g.CompletedAt = nil
	})
}

// MarkGenerationFinished implements store.GenerationStore.
func (s *MemoryStore) MarkGenerationFinished(ctx context.Context, id uuid.UUID, status domain.GenerationStatus, at time.Time) error {
	return s.updateGeneration("MarkGenerationFinished", id, func(g *domain.Generation) {
		g.Status = status
		g.CompletedAt = &at
	})
}

// MarkItemGenerating implements store.GenerationStore.
func (s *MemoryStore) MarkItemGenerating(ctx context.Context, itemID uuid.UUID, at time.Time) error {
	return s.updateItem("MarkItemGenerating", itemID, func(it *domain.GenerationItem) {
		it.Status = domain.ItemStatusGenerating
		it.StartedAt = &at
		it.CompletedAt = nil
		it.HTML = nil
		it.Error = nil
	})
}

// CompleteItem implements store.GenerationStore.
func (s *MemoryStore) CompleteItem(ctx context.Context, itemID uuid.UUID, html string, at time.Time) error {
	return s.updateItem("CompleteItem", itemID, func(it *domain.GenerationItem) {
		it.Status = domain.ItemStatusCompleted
		it.HTML = &html
		it.Error = nil
		it.CompletedAt = &at
	})
}

// FailItem implements store.GenerationStore.
func (s *MemoryStore) FailItem(ctx context.Context, itemID uuid.UUID, message string, at time.Time) error {
	return s.updateItem("FailItem", itemID, func(it *domain.GenerationItem) {
		it.Status = domain.ItemStatusError
		it.HTML = nil
		it.Error = &message
		it.CompletedAt = &at
	})
}

// AbortItem implements store.GenerationStore.
func (s *MemoryStore) AbortItem(ctx context.Context, itemID uuid.UUID, at time.Time) error {
	return s.updateItem("AbortItem", itemID, func(it *domain.GenerationItem) {
		it.Status = domain.ItemStatusAborted
		it.HTML = nil
		it.Error = nil
		it.CompletedAt = &at
	})
}

// ResetItem implements store.GenerationStore.
func (s *MemoryStore) ResetItem(ctx context.Context, itemID uuid.UUID) error {
	return s.updateItem("ResetItem", itemID, func(it *domain.GenerationItem) {
		it.Status = domain.ItemStatusPending
		it.HTML = nil
		it.Error = nil
		it.StartedAt = nil
		it.CompletedAt = nil
	})
}

// RequestAbort implements store.GenerationStore.
func (s *MemoryStore) RequestAbort(ctx context.Context, id uuid.UUID) error {
	return s.updateGeneration("RequestAbort", id, func(g *domain.Generation) {
		g.AbortRequested = true
	})
}

// IsAbortRequested implements store.GenerationStore.
func (s *MemoryStore) IsAbortRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.IsAbortRequestedFn != nil {
		s.mu.Lock()
		s.calls["IsAbortRequested"]++
		s.mu.Unlock()
		return s.IsAbortRequestedFn(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("IsAbortRequested"); err != nil {
		return false, err
	}
	g, ok := s.generations[id]
	if !ok {
		return false, store.ErrGenerationNotFound
	}
	return g.AbortRequested, nil
}

// ListUserGenerations implements store.GenerationStore.
func (s *MemoryStore) ListUserGenerations(ctx context.Context, userID uuid.UUID, cursor *uuid.UUID, limit int) ([]domain.GenerationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListUserGenerations"); err != nil {
		return nil, err
	}

	var after *domain.Generation
	if cursor != nil {
		after = s.generations[*cursor]
	}

	rows := make([]*domain.Generation, 0)
	for _, g := range s.generations {
		if g.UserID != userID {
			continue
		}
		if after != nil && !keyBefore(g.CreatedAt.UnixNano(), g.ID, after.CreatedAt.UnixNano(), after.ID) {
			continue
		}
		rows = append(rows, g)
	}
	sort.Slice(rows, func(i, j int) bool {
		return keyBefore(rows[j].CreatedAt.UnixNano(), rows[j].ID, rows[i].CreatedAt.UnixNano(), rows[i].ID)
	})

	out := make([]domain.GenerationSummary, 0, len(rows))
	for _, g := range rows {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, domain.GenerationSummary{ID: g.ID, Name: g.Name, Status: g.Status, CreatedAt: g.CreatedAt})
	}
	return out, nil
}

// FindInterruptedGenerations implements store.GenerationStore.
func (s *MemoryStore) FindInterruptedGenerations(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindInterruptedGenerations"); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0)
	for id, g := range s.generations {
		if g.Status == domain.GenerationStatusPending || g.Status == domain.GenerationStatusInProgress {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetGalleryRow implements store.GalleryStore.
func (s *MemoryStore) GetGalleryRow(ctx context.Context, id uuid.UUID) (*domain.GalleryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetGalleryRow"); err != nil {
		return nil, err
	}
	g, ok := s.generations[id]
	if !ok {
		return nil, store.ErrGenerationNotFound
	}
	row := toRow(g)
	return &row, nil
}

// ListGallery implements store.GalleryStore.
func (s *MemoryStore) ListGallery(ctx context.Context, q store.GalleryQuery) ([]domain.GalleryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListGallery"); err != nil {
		return nil, err
	}

	search := strings.ToLower(q.Search)
	rows := make([]domain.GalleryRow, 0)
	for _, g := range s.generations {
		if !s.hasCompletedItem(g.ID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(g.Name), search) {
			continue
		}
		row := toRow(g)
		if q.Cursor != nil && !keyBefore(sortKey(q.Sort, row), row.ID, sortKey(q.Sort, *q.Cursor), q.Cursor.ID) {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return keyBefore(sortKey(q.Sort, rows[j]), rows[j].ID, sortKey(q.Sort, rows[i]), rows[i].ID)
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (s *MemoryStore) hasCompletedItem(generationID uuid.UUID) bool {
	for _, it := range s.items {
		if it.GenerationID == generationID && it.Status == domain.ItemStatusCompleted {
			return true
		}
	}
	return false
}

// GetPreviews implements store.GalleryStore.
func (s *MemoryStore) GetPreviews(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetPreviews"); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]domain.Preview)
	for _, id := range ids {
		for _, it := range s.itemsOf(id) {
			if it.Status == domain.ItemStatusCompleted && it.HTML != nil {
				out[id] = domain.Preview{ID: it.ID, ModelName: it.ModelName, HTML: *it.HTML}
				break
			}
		}
	}
	return out, nil
}

// CountItems implements store.GalleryStore.
func (s *MemoryStore) CountItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountItems"); err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make(map[uuid.UUID]int)
	for _, it := range s.items {
		if wanted[it.GenerationID] {
			out[it.GenerationID]++
		}
	}
	return out, nil
}

// IncrementViewCount implements store.GalleryStore.
func (s *MemoryStore) IncrementViewCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.updateGeneration("IncrementViewCount", id, func(g *domain.Generation) {
		g.ViewCount++
		count = g.ViewCount
	})
	return count, err
}

// ToggleLike implements store.LikeStore.
func (s *MemoryStore) ToggleLike(ctx context.Context, generationID, userID uuid.UUID) (domain.LikeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ToggleLike"); err != nil {
		return domain.LikeStatus{}, err
	}
	g, ok := s.generations[generationID]
	if !ok {
		return domain.LikeStatus{}, store.ErrGenerationNotFound
	}

	key := likeKey{generationID: generationID, userID: userID}
	if _, liked := s.likes[key]; liked {
		delete(s.likes, key)
		g.LikesCount = max(g.LikesCount-1, 0)
		return domain.LikeStatus{Liked: false, LikesCount: g.LikesCount}, nil
	}
	s.likes[key] = time.Now()
	g.LikesCount++
	return domain.LikeStatus{Liked: true, LikesCount: g.LikesCount}, nil
}

// GetLikeStatus implements store.LikeStore.
func (s *MemoryStore) GetLikeStatus(ctx context.Context, generationID, userID uuid.UUID) (domain.LikeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetLikeStatus"); err != nil {
		return domain.LikeStatus{}, err
	}
	g, ok := s.generations[generationID]
	if !ok {
		return domain.LikeStatus{}, store.ErrGenerationNotFound
	}
	_, liked := s.likes[likeKey{generationID: generationID, userID: userID}]
	return domain.LikeStatus{Liked: liked, LikesCount: g.LikesCount}, nil
}

// GetLikedSet implements store.LikeStore.
func (s *MemoryStore) GetLikedSet(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetLikedSet"); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if _, liked := s.likes[likeKey{generationID: id, userID: userID}]; liked {
			out[id] = true
		}
	}
	return out, nil
}

func toRow(g *domain.Generation) domain.GalleryRow {
	return domain.GalleryRow{
		ID:         g.ID,
		Name:       g.Name,
		CreatedAt:  g.CreatedAt,
		ViewCount:  g.ViewCount,
		LikesCount: g.LikesCount,
	}
}

func sortKey(sort domain.GallerySort, row domain.GalleryRow) int64 {
	switch sort {
	case domain.GallerySortPopular:
		return int64(row.ViewCount)
	case domain.GallerySortMostLiked:
		return int64(row.LikesCount)
	default:
		return row.CreatedAt.UnixNano()
	}
}

// keyBefore reports whether (key, id) sorts after (cursorKey, cursorID) in
// descending order, i.e. the tuple comparison (key, id) < (cursorKey, cursorID).
func keyBefore(key int64, id uuid.UUID, cursorKey int64, cursorID uuid.UUID) bool {
	if key != cursorKey {
		return key < cursorKey
	}
	return strings.Compare(id.String(), cursorID.String()) < 0
}

var (
	_ store.GenerationStore = (*MemoryStore)(nil)
	_ store.GalleryStore    = (*MemoryStore)(nil)
	_ store.LikeStore       = (*MemoryStore)(nil)
)

//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/postgres"
	"github.com/uibattles/uibattles-api/internal/store"
	"github.com/uibattles/uibattles-api/internal/testdb"
)

func createGeneration(t *testing.T, s *postgres.PostgresGenerationStore, name string, models ...string) (*domain.Generation, []*domain.GenerationItem) {
	t.Helper()
	gen, items, err := domain.NewGeneration(uuid.New(), name, "prompt for "+name, models)
	require.NoError(t, err)
	require.NoError(t, s.CreateGeneration(context.Background(), gen, items))
	return gen, items
}

func TestGenerationLifecycle(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()
	s := postgres.NewPostgresGenerationStore(db, nil)

	gen, items := createGeneration(t, s, "Landing", "a/one", "b/two")
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.MarkGenerationStarted(ctx, gen.ID, now))
	require.NoError(t, s.MarkItemGenerating(ctx, items[0].ID, now))
	require.NoError(t, s.CompleteItem(ctx, items[0].ID, "<html/>", now))
	require.NoError(t, s.FailItem(ctx, items[1].ID, "boom", now))
	require.NoError(t, s.MarkGenerationFinished(ctx, gen.ID, domain.GenerationStatusCompleted, now))

	stored, err := s.GetItems(ctx, gen.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, items[0].ID, stored[0].ID, "creation order")
	assert.Equal(t, "<html/>", *stored[0].HTML)
	assert.Equal(t, "boom", *stored[1].Error)

	require.NoError(t, s.ResetItem(ctx, items[1].ID))
	reset, err := s.GetItem(ctx, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusPending, reset.Status)
	assert.Nil(t, reset.Error)
	assert.Nil(t, reset.StartedAt)
	assert.Nil(t, reset.CompletedAt)

	require.NoError(t, s.RequestAbort(ctx, gen.ID))
	require.NoError(t, s.RequestAbort(ctx, gen.ID))
	aborted, err := s.IsAbortRequested(ctx, gen.ID)
	require.NoError(t, err)
	assert.True(t, aborted)

	got, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	_, err = s.GetItem(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestItemConstraints(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	s := postgres.NewPostgresGenerationStore(db, nil)
	_, items := createGeneration(t, s, "Constraints", "a/one")

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		_, err := tx.Exec(`UPDATE generation_items SET html = '<x/>' WHERE id = $1`, items[0].ID)
		assert.Error(t, err, "html is only allowed on completed items")
	})
}

func TestFindInterruptedGenerations(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()
	s := postgres.NewPostgresGenerationStore(db, nil)

	pending, _ := createGeneration(t, s, "Pending", "a/one")
	running, _ := createGeneration(t, s, "Running", "a/one")
	done, _ := createGeneration(t, s, "Done", "a/one")
	now := time.Now().UTC()
	require.NoError(t, s.MarkGenerationStarted(ctx, running.ID, now))
	require.NoError(t, s.MarkGenerationFinished(ctx, done.ID, domain.GenerationStatusCompleted, now))

	ids, err := s.FindInterruptedGenerations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{pending.ID, running.ID}, ids)
}

func TestGalleryPagination(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()
	gens := postgres.NewPostgresGenerationStore(db, nil)
	gallery := postgres.NewPostgresGalleryStore(db, nil)

	var eligible []uuid.UUID
	for i := 0; i < 5; i++ {
		gen, items := createGeneration(t, gens, "Page "+string(rune('A'+i)), "a/one", "b/two")
		require.NoError(t, gens.CompleteItem(ctx, items[1].ID, "<html/>", time.Now()))
		eligible = append(eligible, gen.ID)
	}
	createGeneration(t, gens, "Never completed", "a/one")

	seen := map[uuid.UUID]bool{}
	q := store.GalleryQuery{Sort: domain.GallerySortPopular, Limit: 2}
	for {
		rows, err := gallery.ListGallery(ctx, q)
		require.NoError(t, err)
		for _, row := range rows {
			assert.False(t, seen[row.ID], "pages never overlap")
			seen[row.ID] = true
		}
		if len(rows) < q.Limit {
			break
		}
		last := rows[len(rows)-1]
		q.Cursor = &last
	}
	assert.Len(t, seen, len(eligible))

	previews, err := gallery.GetPreviews(ctx, eligible)
	require.NoError(t, err)
	assert.Len(t, previews, len(eligible))

	counts, err := gallery.CountItems(ctx, eligible)
	require.NoError(t, err)
	for _, id := range eligible {
		assert.Equal(t, 2, counts[id])
	}

	rows, err := gallery.ListGallery(ctx, store.GalleryQuery{Sort: domain.GallerySortRecent, Search: "page c", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Page C", rows[0].Name)
}

func TestLikesAndViews(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()
	gens := postgres.NewPostgresGenerationStore(db, nil)
	gallery := postgres.NewPostgresGalleryStore(db, nil)

	gen, _ := createGeneration(t, gens, "Liked", "a/one")
	alice, bob := uuid.New(), uuid.New()

	status, err := gallery.ToggleLike(ctx, gen.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeStatus{Liked: true, LikesCount: 1}, status)

	status, err = gallery.ToggleLike(ctx, gen.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, status.LikesCount)

	status, err = gallery.ToggleLike(ctx, gen.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeStatus{Liked: false, LikesCount: 1}, status)

	status, err = gallery.GetLikeStatus(ctx, gen.ID, bob)
	require.NoError(t, err)
	assert.True(t, status.Liked)

	set, err := gallery.GetLikedSet(ctx, []uuid.UUID{gen.ID}, bob)
	require.NoError(t, err)
	assert.True(t, set[gen.ID])

	_, err = gallery.ToggleLike(ctx, uuid.New(), alice)
	assert.ErrorIs(t, err, store.ErrGenerationNotFound)

	for want := 1; want <= 3; want++ {
		count, err := gallery.IncrementViewCount(ctx, gen.ID)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
}

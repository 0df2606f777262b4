package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/store"
)

// sortColumns maps each gallery sort to its key column. Values are
// interpolated into SQL, so only this fixed set is allowed.
var sortColumns = map[domain.GallerySort]string{
	domain.GallerySortRecent:    "g.created_at",
	domain.GallerySortPopular:   "g.view_count",
	domain.GallerySortMostLiked: "g.likes_count",
}

// PostgresGalleryStore implements store.GalleryStore and store.LikeStore
// using PostgreSQL.
type PostgresGalleryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGalleryStore creates a new PostgreSQL implementation of the
// GalleryStore and LikeStore interfaces.
func NewPostgresGalleryStore(db *sql.DB, log *slog.Logger) *PostgresGalleryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresGalleryStore{
		db:     db,
		logger: log.With(slog.String("component", "gallery_store")),
	}
}

var (
	_ store.GalleryStore = (*PostgresGalleryStore)(nil)
	_ store.LikeStore    = (*PostgresGalleryStore)(nil)
)

// GetGalleryRow implements store.GalleryStore.GetGalleryRow.
func (s *PostgresGalleryStore) GetGalleryRow(ctx context.Context, id uuid.UUID) (*domain.GalleryRow, error) {
	var row domain.GalleryRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, view_count, likes_count
		FROM generations
		WHERE id = $1`, id).Scan(&row.ID, &row.Name, &row.CreatedAt, &row.ViewCount, &row.LikesCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGenerationNotFound
		}
		return nil, MapError(err)
	}
	return &row, nil
}

// ListGallery implements store.GalleryStore.ListGallery.
func (s *PostgresGalleryStore) ListGallery(ctx context.Context, q store.GalleryQuery) ([]domain.GalleryRow, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args := buildGalleryQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query gallery",
			slog.String("error", err.Error()),
			slog.String("sort", string(q.Sort)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]domain.GalleryRow, 0, q.Limit)
	for rows.Next() {
		var row domain.GalleryRow
		if err := rows.Scan(&row.ID, &row.Name, &row.CreatedAt, &row.ViewCount, &row.LikesCount); err != nil {
			return nil, fmt.Errorf("failed to scan gallery row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gallery rows: %w", err)
	}
	return out, nil
}

// buildGalleryQuery renders the page query. Rows are compared as
// (sort key, id) tuples so that pages never overlap or skip ties.
func buildGalleryQuery(q store.GalleryQuery) (string, []any) {
	column, ok := sortColumns[q.Sort]
	if !ok {
		column = sortColumns[domain.GallerySortRecent]
	}

	var (
		sb   strings.Builder
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`
		SELECT g.id, g.name, g.created_at, g.view_count, g.likes_count
		FROM generations g
		WHERE EXISTS (
			SELECT 1 FROM generation_items i
			WHERE i.generation_id = g.id AND i.status = 'completed'
		)`)

	if q.Search != "" {
		sb.WriteString(" AND g.name ILIKE " + arg("%"+escapeLike(q.Search)+"%") + ` ESCAPE '\'`)
	}

	if q.Cursor != nil {
		sb.WriteString(fmt.Sprintf(" AND (%s, g.id) < (%s, %s)",
			column, arg(cursorKey(q.Sort, q.Cursor)), arg(q.Cursor.ID)))
	}

	sb.WriteString(fmt.Sprintf(" ORDER BY %s DESC, g.id DESC LIMIT %s", column, arg(q.Limit)))

	return sb.String(), args
}

func cursorKey(sort domain.GallerySort, row *domain.GalleryRow) any {
	switch sort {
	case domain.GallerySortPopular:
		return row.ViewCount
	case domain.GallerySortMostLiked:
		return row.LikesCount
	default:
		return row.CreatedAt
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// GetPreviews implements store.GalleryStore.GetPreviews.
func (s *PostgresGalleryStore) GetPreviews(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Preview, error) {
	out := make(map[uuid.UUID]domain.Preview, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (generation_id) generation_id, id, model_name, COALESCE(html, '')
		FROM generation_items
		WHERE generation_id = ANY($1::uuid[]) AND status = 'completed'
		ORDER BY generation_id, created_at ASC, position ASC`, idStrings(ids))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var generationID uuid.UUID
		var p domain.Preview
		if err := rows.Scan(&generationID, &p.ID, &p.ModelName, &p.HTML); err != nil {
			return nil, fmt.Errorf("failed to scan preview: %w", err)
		}
		out[generationID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate previews: %w", err)
	}
	return out, nil
}

// CountItems implements store.GalleryStore.CountItems.
func (s *PostgresGalleryStore) CountItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT generation_id, COUNT(*)
		FROM generation_items
		WHERE generation_id = ANY($1::uuid[])
		GROUP BY generation_id`, idStrings(ids))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan item count: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item counts: %w", err)
	}
	return out, nil
}

// IncrementViewCount implements store.GalleryStore.IncrementViewCount.
func (s *PostgresGalleryStore) IncrementViewCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		UPDATE generations
		SET view_count = view_count + 1
		WHERE id = $1
		RETURNING view_count`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrGenerationNotFound
		}
		return 0, MapError(err)
	}
	return count, nil
}

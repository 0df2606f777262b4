package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/domain"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"github.com/uibattles/uibattles-api/internal/store"
)

const generationColumns = `
	id, name, prompt, user_id, status, abort_requested,
	view_count, likes_count, started_at, completed_at, created_at`

const itemColumns = `
	id, generation_id, model_id, model_name, position, status,
	html, error, started_at, completed_at, created_at`

// PostgresGenerationStore implements store.GenerationStore using PostgreSQL.
type PostgresGenerationStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGenerationStore creates a new PostgreSQL implementation of the
// GenerationStore interface. If logger is nil, a default logger will be used.
func NewPostgresGenerationStore(db *sql.DB, log *slog.Logger) *PostgresGenerationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresGenerationStore{
		db:     db,
		logger: log.With(slog.String("component", "generation_store")),
	}
}

// Ensure PostgresGenerationStore implements store.GenerationStore interface
var _ store.GenerationStore = (*PostgresGenerationStore)(nil)

// CreateGeneration implements store.GenerationStore.CreateGeneration.
// The generation and its items are inserted in one transaction.
func (s *PostgresGenerationStore) CreateGeneration(
	ctx context.Context,
	gen *domain.Generation,
	items []*domain.GenerationItem,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := gen.Validate(); err != nil {
		log.Warn("generation validation failed during create",
			slog.String("error", err.Error()),
			slog.String("generation_id", gen.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO generations (`+generationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			gen.ID, gen.Name, gen.Prompt, gen.UserID, gen.Status, gen.AbortRequested,
			gen.ViewCount, gen.LikesCount, gen.StartedAt, gen.CompletedAt, gen.CreatedAt,
		)
		if err != nil {
			return MapError(err)
		}

		return insertItems(ctx, tx, items)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Warn("generation already exists",
				slog.String("generation_id", gen.ID.String()))
			return err
		}
		log.Error("failed to create generation",
			slog.String("error", err.Error()),
			slog.String("generation_id", gen.ID.String()))
		return err
	}

	log.Info("generation created successfully",
		slog.String("generation_id", gen.ID.String()),
		slog.String("user_id", gen.UserID.String()),
		slog.Int("item_count", len(items)))
	return nil
}

// insertItems writes items through q, which is the creating transaction.
func insertItems(ctx context.Context, q store.DBTX, items []*domain.GenerationItem) error {
	for _, item := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO generation_items (`+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			item.ID, item.GenerationID, item.ModelID, item.ModelName, item.Position, item.Status,
			item.HTML, item.Error, item.StartedAt, item.CompletedAt, item.CreatedAt,
		)
		if err != nil {
			return MapError(err)
		}
	}
	return nil
}

// GetGeneration implements store.GenerationStore.GetGeneration.
func (s *PostgresGenerationStore) GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = $1`, id)
	gen, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("generation not found", slog.String("generation_id", id.String()))
			return nil, store.ErrGenerationNotFound
		}
		log.Error("failed to get generation",
			slog.String("error", err.Error()),
			slog.String("generation_id", id.String()))
		return nil, MapError(err)
	}
	return gen, nil
}

// GetItems implements store.GenerationStore.GetItems.
func (s *PostgresGenerationStore) GetItems(ctx context.Context, generationID uuid.UUID) ([]*domain.GenerationItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM generation_items
		WHERE generation_id = $1
		ORDER BY created_at ASC, position ASC`, generationID)
	if err != nil {
		log.Error("failed to query generation items",
			slog.String("error", err.Error()),
			slog.String("generation_id", generationID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.GenerationItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation items: %w", err)
	}
	return items, nil
}

// GetItem implements store.GenerationStore.GetItem.
func (s *PostgresGenerationStore) GetItem(ctx context.Context, itemID uuid.UUID) (*domain.GenerationItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM generation_items WHERE id = $1`, itemID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("generation item not found", slog.String("item_id", itemID.String()))
			return nil, store.ErrItemNotFound
		}
		log.Error("failed to get generation item",
			slog.String("error", err.Error()),
			slog.String("item_id", itemID.String()))
		return nil, MapError(err)
	}
	return item, nil
}

// MarkGenerationStarted implements store.GenerationStore.MarkGenerationStarted.
func (s *PostgresGenerationStore) MarkGenerationStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.execGeneration(ctx, "mark generation started", id, `
		UPDATE generations
		SET status = $2, started_at = $3, completed_at = NULL
		WHERE id = $1`,
		id, domain.GenerationStatusInProgress, at)
}

// MarkGenerationFinished implements store.GenerationStore.MarkGenerationFinished.
func (s *PostgresGenerationStore) MarkGenerationFinished(
	ctx context.Context,
	id uuid.UUID,
	status domain.GenerationStatus,
	at time.Time,
) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidGenerationStatus)
	}
	return s.execGeneration(ctx, "mark generation finished", id, `
		UPDATE generations
		SET status = $2, completed_at = $3
		WHERE id = $1`,
		id, status, at)
}

// MarkItemGenerating implements store.GenerationStore.MarkItemGenerating.
func (s *PostgresGenerationStore) MarkItemGenerating(ctx context.Context, itemID uuid.UUID, at time.Time) error {
	return s.execItem(ctx, "mark item generating", itemID, `
		UPDATE generation_items
		SET status = $2, started_at = $3, completed_at = NULL, html = NULL, error = NULL
		WHERE id = $1`,
		itemID, domain.ItemStatusGenerating, at)
}

// CompleteItem implements store.GenerationStore.CompleteItem.
func (s *PostgresGenerationStore) CompleteItem(ctx context.Context, itemID uuid.UUID, html string, at time.Time) error {
	return s.execItem(ctx, "complete item", itemID, `
		UPDATE generation_items
		SET status = $2, html = $3, error = NULL, completed_at = $4
		WHERE id = $1`,
		itemID, domain.ItemStatusCompleted, html, at)
}

// FailItem implements store.GenerationStore.FailItem.
func (s *PostgresGenerationStore) FailItem(ctx context.Context, itemID uuid.UUID, message string, at time.Time) error {
	return s.execItem(ctx, "fail item", itemID, `
		UPDATE generation_items
		SET status = $2, error = $3, html = NULL, completed_at = $4
		WHERE id = $1`,
		itemID, domain.ItemStatusError, message, at)
}

// AbortItem implements store.GenerationStore.AbortItem.
func (s *PostgresGenerationStore) AbortItem(ctx context.Context, itemID uuid.UUID, at time.Time) error {
	return s.execItem(ctx, "abort item", itemID, `
		UPDATE generation_items
		SET status = $2, html = NULL, completed_at = $3
		WHERE id = $1`,
		itemID, domain.ItemStatusAborted, at)
}

// ResetItem implements store.GenerationStore.ResetItem.
func (s *PostgresGenerationStore) ResetItem(ctx context.Context, itemID uuid.UUID) error {
	return s.execItem(ctx, "reset item", itemID, `
		UPDATE generation_items
		SET status = $2, html = NULL, error = NULL, started_at = NULL, completed_at = NULL
		WHERE id = $1`,
		itemID, domain.ItemStatusPending)
}

// RequestAbort implements store.GenerationStore.RequestAbort.
func (s *PostgresGenerationStore) RequestAbort(ctx context.Context, id uuid.UUID) error {
	return s.execGeneration(ctx, "request abort", id, `
		UPDATE generations SET abort_requested = TRUE WHERE id = $1`, id)
}

// IsAbortRequested implements store.GenerationStore.IsAbortRequested.
func (s *PostgresGenerationStore) IsAbortRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var requested bool
	err := s.db.QueryRowContext(ctx,
		`SELECT abort_requested FROM generations WHERE id = $1`, id).Scan(&requested)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, store.ErrGenerationNotFound
		}
		return false, MapError(err)
	}
	return requested, nil
}

// ListUserGenerations implements store.GenerationStore.ListUserGenerations.
// An unknown cursor is ignored.
func (s *PostgresGenerationStore) ListUserGenerations(
	ctx context.Context,
	userID uuid.UUID,
	cursor *uuid.UUID,
	limit int,
) ([]domain.GenerationSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		rows *sql.Rows
		err  error
	)

	var cursorAt time.Time
	var cursorID uuid.UUID
	hasCursor := false
	if cursor != nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT created_at, id FROM generations WHERE id = $1`, *cursor).Scan(&cursorAt, &cursorID)
		switch {
		case err == nil:
			hasCursor = true
		case errors.Is(err, sql.ErrNoRows):
			log.Debug("unknown cursor ignored", slog.String("cursor", cursor.String()))
		default:
			return nil, MapError(err)
		}
	}

	if hasCursor {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, name, status, created_at
			FROM generations
			WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`,
			userID, cursorAt, cursorID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, name, status, created_at
			FROM generations
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
			userID, limit)
	}
	if err != nil {
		log.Error("failed to list user generations",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]domain.GenerationSummary, 0, limit)
	for rows.Next() {
		var summary domain.GenerationSummary
		var status string
		if err := rows.Scan(&summary.ID, &summary.Name, &status, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation summary: %w", err)
		}
		summary.Status = domain.GenerationStatus(status)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation summaries: %w", err)
	}
	return out, nil
}

// FindInterruptedGenerations implements store.GenerationStore.FindInterruptedGenerations.
func (s *PostgresGenerationStore) FindInterruptedGenerations(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM generations
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC`,
		domain.GenerationStatusPending, domain.GenerationStatusInProgress)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan generation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresGenerationStore) execGeneration(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	return s.exec(ctx, op, query, "generation_id", id, store.ErrGenerationNotFound, args...)
}

func (s *PostgresGenerationStore) execItem(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	return s.exec(ctx, op, query, "item_id", id, store.ErrItemNotFound, args...)
}

func (s *PostgresGenerationStore) exec(
	ctx context.Context,
	op string,
	query string,
	idKey string,
	id uuid.UUID,
	notFound error,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to "+op,
			slog.String("error", err.Error()),
			slog.String(idKey, id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, notFound); err != nil {
		return err
	}

	log.Debug(op, slog.String(idKey, id.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*domain.Generation, error) {
	var (
		gen         domain.Generation
		status      string
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&gen.ID, &gen.Name, &gen.Prompt, &gen.UserID, &status, &gen.AbortRequested,
		&gen.ViewCount, &gen.LikesCount, &startedAt, &completedAt, &gen.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	gen.Status = domain.GenerationStatus(status)
	gen.StartedAt = timePtr(startedAt)
	gen.CompletedAt = timePtr(completedAt)
	return &gen, nil
}

func scanItem(row rowScanner) (*domain.GenerationItem, error) {
	var (
		item        domain.GenerationItem
		status      string
		html        sql.NullString
		errMsg      sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&item.ID, &item.GenerationID, &item.ModelID, &item.ModelName, &item.Position, &status,
		&html, &errMsg, &startedAt, &completedAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = domain.ItemStatus(status)
	item.HTML = stringPtr(html)
	item.Error = stringPtr(errMsg)
	item.StartedAt = timePtr(startedAt)
	item.CompletedAt = timePtr(completedAt)
	return &item, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

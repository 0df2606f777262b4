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

// ToggleLike implements store.LikeStore.ToggleLike. The generation row is
// locked first so that concurrent toggles of one generation serialize.
func (s *PostgresGalleryStore) ToggleLike(ctx context.Context, generationID, userID uuid.UUID) (domain.LikeStatus, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var status domain.LikeStatus
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM generations WHERE id = $1 FOR UPDATE`, generationID).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrGenerationNotFound
			}
			return MapError(err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM generation_likes WHERE generation_id = $1 AND user_id = $2`,
			generationID, userID)
		if err != nil {
			return MapError(err)
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if removed > 0 {
			status.Liked = false
			return tx.QueryRowContext(ctx, `
				UPDATE generations
				SET likes_count = GREATEST(likes_count - 1, 0)
				WHERE id = $1
				RETURNING likes_count`, generationID).Scan(&status.LikesCount)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO generation_likes (id, generation_id, user_id, created_at)
			VALUES ($1, $2, $3, $4)`,
			uuid.New(), generationID, userID, time.Now().UTC())
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: like already exists", store.ErrDuplicate)
			}
			return MapError(err)
		}

		status.Liked = true
		return tx.QueryRowContext(ctx, `
			UPDATE generations
			SET likes_count = likes_count + 1
			WHERE id = $1
			RETURNING likes_count`, generationID).Scan(&status.LikesCount)
	})
	if err != nil {
		if !errors.Is(err, store.ErrGenerationNotFound) {
			log.Error("failed to toggle like",
				slog.String("error", err.Error()),
				slog.String("generation_id", generationID.String()))
		}
		return domain.LikeStatus{}, err
	}

	log.Debug("like toggled",
		slog.String("generation_id", generationID.String()),
		slog.Bool("liked", status.Liked))
	return status, nil
}

// GetLikeStatus implements store.LikeStore.GetLikeStatus.
func (s *PostgresGalleryStore) GetLikeStatus(ctx context.Context, generationID, userID uuid.UUID) (domain.LikeStatus, error) {
	var status domain.LikeStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT g.likes_count,
			EXISTS (
				SELECT 1 FROM generation_likes l
				WHERE l.generation_id = g.id AND l.user_id = $2
			)
		FROM generations g
		WHERE g.id = $1`, generationID, userID).Scan(&status.LikesCount, &status.Liked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LikeStatus{}, store.ErrGenerationNotFound
		}
		return domain.LikeStatus{}, MapError(err)
	}
	return status, nil
}

// GetLikedSet implements store.LikeStore.GetLikedSet.
func (s *PostgresGalleryStore) GetLikedSet(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT generation_id
		FROM generation_likes
		WHERE user_id = $1 AND generation_id = ANY($2::uuid[])`,
		userID, idStrings(ids))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liked generation: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate liked generations: %w", err)
	}
	return out, nil
}

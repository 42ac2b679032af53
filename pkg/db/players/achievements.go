package players

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// FindByPlayer returns every achievement a player holds, oldest first.
func (db *DB) FindByPlayer(ctx context.Context, playerID int64) ([]model.Achievement, error) {
	query := `
		SELECT player_id, type, metric, threshold, created_at
		FROM achievements
		WHERE player_id = $1
		ORDER BY created_at ASC, type ASC
	`
	return db.queryAchievements(ctx, query, playerID)
}

// FindUnknownDate returns the player's achievements whose crossing time is
// still the unknown-date sentinel.
func (db *DB) FindUnknownDate(ctx context.Context, playerID int64) ([]model.Achievement, error) {
	query := `
		SELECT player_id, type, metric, threshold, created_at
		FROM achievements
		WHERE player_id = $1 AND created_at = $2
		ORDER BY type ASC
	`
	return db.queryAchievements(ctx, query, playerID, model.UnknownDate)
}

func (db *DB) queryAchievements(ctx context.Context, query string, args ...any) ([]model.Achievement, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Achievement
	for rows.Next() {
		var (
			a      model.Achievement
			metric string
		)
		if err := rows.Scan(&a.PlayerID, &a.Type, &metric, &a.Threshold, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Metric = metrics.Key(metric)
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}

	return out, rows.Err()
}

// CreateAchievements inserts new achievements in one batch. Conflicting rows
// are left untouched: once a (player, type) pair is achieved it is never
// overwritten by a fresh detection, only tightened through Replace.
func (db *DB) CreateAchievements(ctx context.Context, achievements []model.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}

	query := `
		INSERT INTO achievements (player_id, type, metric, threshold, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, type) DO NOTHING
	`

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range achievements {
			batch.Queue(query, a.PlayerID, a.Type, string(a.Metric), a.Threshold, a.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Replace swaps an unknown-date achievement for its reconciled version inside
// a single transaction, so a partial replacement is never observable. The
// delete is restricted to the unknown-date row: a concurrent run that already
// recorded a real date wins, and this call becomes a no-op.
func (db *DB) Replace(ctx context.Context, playerID int64, achievementType string, updated model.Achievement) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM achievements
			WHERE player_id = $1 AND type = $2 AND created_at = $3
		`, playerID, achievementType, model.UnknownDate)
		if err != nil {
			return fmt.Errorf("delete unknown-date achievement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO achievements (player_id, type, metric, threshold, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, updated.PlayerID, updated.Type, string(updated.Metric), updated.Threshold, updated.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert reconciled achievement: %w", err)
		}
		return nil
	})
}

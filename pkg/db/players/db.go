package players

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/db/postgres"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// ErrNotFound is returned when a player does not exist.
var ErrNotFound = errors.New("player not found")

// Store describes the relational side of the engine: players, pre-tracking
// baselines and achievements.
type Store interface {
	InitializeDB(ctx context.Context) error

	GetPlayer(ctx context.Context, playerID int64) (*model.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error)
	UpsertPlayer(ctx context.Context, player *model.Player) (int64, error)

	GetBaseline(ctx context.Context, playerID int64) (*model.Baseline, error)
	UpsertBaseline(ctx context.Context, baseline *model.Baseline) error

	FindByPlayer(ctx context.Context, playerID int64) ([]model.Achievement, error)
	FindUnknownDate(ctx context.Context, playerID int64) ([]model.Achievement, error)
	CreateAchievements(ctx context.Context, achievements []model.Achievement) error
	Replace(ctx context.Context, playerID int64, achievementType string, updated model.Achievement) error

	Close()
}

// DB implements Store on Postgres.
type DB struct {
	postgres.Client
}

// New connects and ensures the schema exists.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	client, err := postgres.New(ctx, logger)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the players, baselines and achievements tables.
func (db *DB) InitializeDB(ctx context.Context) error {
	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"players", db.initPlayers},
		{"baselines", db.initBaselines},
		{"achievements", db.initAchievements},
	}

	for _, op := range initOps {
		if err := op.fn(ctx); err != nil {
			return fmt.Errorf("create %s: %w", op.name, err)
		}
	}
	return nil
}

func (db *DB) initPlayers(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS players (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'unknown',
			status TEXT NOT NULL DEFAULT 'active',
			registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initBaselines(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS baselines (
			player_id BIGINT NOT NULL REFERENCES players (id),
			metric TEXT NOT NULL,
			rank BIGINT NOT NULL DEFAULT -1,
			value BIGINT NOT NULL DEFAULT -1,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (player_id, metric)
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initAchievements(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS achievements (
			player_id BIGINT NOT NULL REFERENCES players (id),
			type TEXT NOT NULL,
			metric TEXT NOT NULL,
			threshold BIGINT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (player_id, type)
		)
	`
	return db.Exec(ctx, query)
}

// GetPlayer returns a player by id.
func (db *DB) GetPlayer(ctx context.Context, playerID int64) (*model.Player, error) {
	query := `
		SELECT id, username, display_name, type, status, registered_at, updated_at
		FROM players
		WHERE id = $1
	`
	return db.scanPlayer(db.QueryRow(ctx, query, playerID), playerID)
}

// GetPlayerByUsername returns a player by their normalized username.
func (db *DB) GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error) {
	query := `
		SELECT id, username, display_name, type, status, registered_at, updated_at
		FROM players
		WHERE username = $1
	`
	return db.scanPlayer(db.QueryRow(ctx, query, username), 0)
}

func (db *DB) scanPlayer(row interface{ Scan(...any) error }, playerID int64) (*model.Player, error) {
	var p model.Player
	err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.Type, &p.Status, &p.RegisteredAt, &p.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, playerID)
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPlayer inserts or refreshes a player row and returns its id.
func (db *DB) UpsertPlayer(ctx context.Context, player *model.Player) (int64, error) {
	query := `
		INSERT INTO players (username, display_name, type, status, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := db.QueryRow(ctx, query,
		player.Username, player.DisplayName, string(player.Type), string(player.Status),
	).Scan(&id)
	return id, err
}

// GetBaseline loads a player's pre-tracking baseline. Players with no stored
// baseline get an empty one, so callers can substitute without nil checks.
func (db *DB) GetBaseline(ctx context.Context, playerID int64) (*model.Baseline, error) {
	query := `
		SELECT metric, rank, value, updated_at
		FROM baselines
		WHERE player_id = $1
	`
	rows, err := db.Query(ctx, query, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	baseline := &model.Baseline{
		PlayerID: playerID,
		Stats:    make(map[metrics.Key]model.Stat, metrics.Count()),
	}
	for rows.Next() {
		var (
			metric    string
			rank      int64
			value     int64
			updatedAt time.Time
		)
		if err := rows.Scan(&metric, &rank, &value, &updatedAt); err != nil {
			return nil, err
		}
		baseline.Stats[metrics.Key(metric)] = model.NewStat(rank, value)
		if updatedAt.After(baseline.UpdatedAt) {
			baseline.UpdatedAt = updatedAt
		}
	}

	return baseline, rows.Err()
}

// UpsertBaseline raises a player's baseline values. GREATEST keeps the write
// monotonic: history is non-decreasing per metric, so a baseline may only
// ever go up.
func (db *DB) UpsertBaseline(ctx context.Context, baseline *model.Baseline) error {
	query := `
		INSERT INTO baselines (player_id, metric, rank, value, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (player_id, metric) DO UPDATE SET
			rank = GREATEST(baselines.rank, EXCLUDED.rank),
			value = GREATEST(baselines.value, EXCLUDED.value),
			updated_at = NOW()
	`

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for metricKey, stat := range baseline.Stats {
			batch.Queue(query, baseline.PlayerID, string(metricKey), stat.WireRank(), stat.WireValue())
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/db/clickhouse"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/trends"
)

const TableName = "snapshots"

// Store describes the snapshot time-series operations the engine consumes.
// Snapshots are append-only: rows are inserted by the ingestion pipeline or
// by history imports, never updated.
type Store interface {
	InitializeDB(ctx context.Context) error
	InsertSnapshots(ctx context.Context, playerType model.PlayerType, snapshots []*model.Snapshot) error
	FindFirstInRange(ctx context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error)
	FindLastInRange(ctx context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error)
	FindAllInRange(ctx context.Context, playerID int64, start, end time.Time) ([]*model.Snapshot, error)
	ScanBoundsForDate(ctx context.Context, date time.Time) ([]trends.MetricScan, error)
	SumForDate(ctx context.Context, date time.Time) (map[metrics.Key]int64, error)
	Close() error
}

// DB implements Store on ClickHouse. One row per (player, metric, capture);
// the untracked sentinel -1 is the wire representation and is mapped to nil
// stats at the model boundary. The player's account type is denormalized onto
// every row so the per-date trend scans can filter to definite accounts
// without a cross-store join.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects and ensures the snapshots table exists.
func New(ctx context.Context, logger *zap.Logger, dbName string) (*DB, error) {
	client, err := clickhouse.New(ctx, logger.With(zap.String("db", dbName)), dbName)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: clickhouse.SanitizeName(dbName)}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// NewWithClient wraps an existing connection pool.
func NewWithClient(client clickhouse.Client, dbName string) *DB {
	return &DB{Client: client, Name: clickhouse.SanitizeName(dbName)}
}

// InitializeDB creates the snapshots table when missing. MergeTree (not
// Replacing) because snapshots are immutable once persisted.
func (db *DB) InitializeDB(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			player_id   Int64 CODEC(Delta, ZSTD(1)),
			player_type LowCardinality(String),
			metric      LowCardinality(String),
			created_at  DateTime64(3) CODEC(DoubleDelta, ZSTD(1)),
			imported_at Nullable(DateTime64(3)) CODEC(DoubleDelta, ZSTD(1)),
			rank        Int64 CODEC(Delta, ZSTD(1)),
			value       Int64 CODEC(Delta, ZSTD(3)),
			INDEX idx_created created_at TYPE minmax GRANULARITY 8192
		) ENGINE = %s
		ORDER BY (player_id, metric, created_at)
	`, db.Name, TableName, clickhouse.MergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

// InsertSnapshots persists full captures as per-metric rows in one batch.
func (db *DB) InsertSnapshots(ctx context.Context, playerType model.PlayerType, snapshots []*model.Snapshot) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		player_id, player_type, metric, created_at, imported_at, rank, value
	) VALUES`, db.Name, TableName)

	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, snapshot := range snapshots {
		for metricKey, stat := range snapshot.Stats {
			if err := batch.Append(
				snapshot.PlayerID,
				string(playerType),
				string(metricKey),
				snapshot.CreatedAt,
				snapshot.ImportedAt,
				stat.WireRank(),
				stat.WireValue(),
			); err != nil {
				return err
			}
		}
	}

	return batch.Send()
}

// FindFirstInRange returns the earliest capture inside [start, end], or nil
// when the window holds none.
func (db *DB) FindFirstInRange(ctx context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error) {
	return db.findBoundary(ctx, playerID, start, end, "ASC")
}

// FindLastInRange returns the latest capture inside [start, end], or nil when
// the window holds none.
func (db *DB) FindLastInRange(ctx context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error) {
	return db.findBoundary(ctx, playerID, start, end, "DESC")
}

func (db *DB) findBoundary(ctx context.Context, playerID int64, start, end time.Time, order string) (*model.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT created_at
		FROM "%s"."%s"
		WHERE player_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at %s
		LIMIT 1
	`, db.Name, TableName, order)

	var capturedAt time.Time
	if err := db.QueryRow(ctx, query, playerID, start, end).Scan(&capturedAt); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	found, err := db.loadCaptures(ctx, playerID, capturedAt, capturedAt)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// FindAllInRange returns every capture in [start, end] in chronological
// order. A zero start means "from the beginning of history".
func (db *DB) FindAllInRange(ctx context.Context, playerID int64, start, end time.Time) ([]*model.Snapshot, error) {
	return db.loadCaptures(ctx, playerID, start, end)
}

// loadCaptures fetches per-metric rows and folds them back into snapshots,
// grouped by capture time.
func (db *DB) loadCaptures(ctx context.Context, playerID int64, start, end time.Time) ([]*model.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT metric, created_at, imported_at, rank, value
		FROM "%s"."%s"
		WHERE player_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, metric ASC
	`, db.Name, TableName)

	rows, err := db.Query(ctx, query, playerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out     []*model.Snapshot
		current *model.Snapshot
	)
	for rows.Next() {
		var (
			metric     string
			createdAt  time.Time
			importedAt *time.Time
			rank       int64
			value      int64
		)
		if err := rows.Scan(&metric, &createdAt, &importedAt, &rank, &value); err != nil {
			return nil, err
		}

		if current == nil || !current.CreatedAt.Equal(createdAt) {
			current = &model.Snapshot{
				PlayerID:   playerID,
				CreatedAt:  createdAt,
				ImportedAt: importedAt,
				Stats:      make(map[metrics.Key]model.Stat, 96),
			}
			out = append(out, current)
		}
		current.Stats[metrics.Key(metric)] = model.NewStat(rank, value)
	}

	return out, rows.Err()
}

// definiteTypesFilter keeps only players whose account classification has
// been resolved; unknown accounts would skew the global bounds.
const definiteTypesFilter = `player_type IN ('regular', 'ironman', 'hardcore', 'ultimate')`

// ScanBoundsForDate aggregates the materialized per-date view (latest capture
// per player on that calendar day, definite account types only) into raw
// per-metric bounds. Metrics nobody tracked that day come back as -1.
func (db *DB) ScanBoundsForDate(ctx context.Context, date time.Time) ([]trends.MetricScan, error) {
	dayStart, dayEnd := dayWindow(date)

	query := fmt.Sprintf(`
		SELECT
			metric,
			if(countIf(latest_rank > -1) = 0, -1, maxIf(latest_rank, latest_rank > -1))    AS max_rank,
			if(countIf(latest_value > -1) = 0, -1, minIf(latest_value, latest_value > -1)) AS min_value,
			if(countIf(latest_value > -1) = 0, -1, maxIf(latest_value, latest_value > -1)) AS max_value,
			countIf(latest_value > -1) AS players
		FROM (
			SELECT
				player_id,
				metric,
				argMax(rank, created_at)  AS latest_rank,
				argMax(value, created_at) AS latest_value
			FROM "%s"."%s"
			WHERE created_at >= ? AND created_at < ? AND %s
			GROUP BY player_id, metric
		)
		GROUP BY metric
	`, db.Name, TableName, definiteTypesFilter)

	rows, err := db.Query(ctx, query, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trends.MetricScan
	for rows.Next() {
		scan, err := scanBoundsRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scan)
	}

	return out, rows.Err()
}

// scanBoundsRow decodes one row of the bounds query. The countIf aggregate
// comes back as UInt64 and the native protocol rejects signed targets, so it
// is scanned unsigned and converted afterwards.
func scanBoundsRow(row interface{ Scan(...any) error }) (trends.MetricScan, error) {
	var (
		metric  string
		players uint64
		scan    trends.MetricScan
	)
	if err := row.Scan(&metric, &scan.MaxRank, &scan.MinValue, &scan.MaxValue, &players); err != nil {
		return trends.MetricScan{}, err
	}
	scan.Metric = metrics.Key(metric)
	scan.Players = int64(players)
	return scan, nil
}

// SumForDate computes the per-metric value sum over the exact same
// materialized per-date set the bounds scan uses, keyed by metric.
func (db *DB) SumForDate(ctx context.Context, date time.Time) (map[metrics.Key]int64, error) {
	dayStart, dayEnd := dayWindow(date)

	query := fmt.Sprintf(`
		SELECT metric, sumIf(latest_value, latest_value > -1) AS total
		FROM (
			SELECT
				player_id,
				metric,
				argMax(value, created_at) AS latest_value
			FROM "%s"."%s"
			WHERE created_at >= ? AND created_at < ? AND %s
			GROUP BY player_id, metric
		)
		GROUP BY metric
	`, db.Name, TableName, definiteTypesFilter)

	rows, err := db.Query(ctx, query, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[metrics.Key]int64)
	for rows.Next() {
		var (
			metric string
			total  int64
		)
		if err := rows.Scan(&metric, &total); err != nil {
			return nil, err
		}
		out[metrics.Key(metric)] = total
	}

	return out, rows.Err()
}

func dayWindow(date time.Time) (time.Time, time.Time) {
	dayStart := trends.Day(date)
	return dayStart, dayStart.AddDate(0, 0, 1)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

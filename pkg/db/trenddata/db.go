package trenddata

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

const TableName = "trend_datapoints"

// ErrNotFound is returned when no datapoint exists for a (metric, date).
var ErrNotFound = errors.New("trend datapoint not found")

// Store holds the daily per-metric global aggregate bounds and sums.
type Store interface {
	InitializeDB(ctx context.Context) error
	Get(ctx context.Context, metric metrics.Key, date time.Time) (*model.TrendDatapoint, error)
	GetForDate(ctx context.Context, date time.Time) ([]model.TrendDatapoint, error)
	ReplaceForDate(ctx context.Context, date time.Time, rows []model.TrendDatapoint) error
	SetSums(ctx context.Context, date time.Time, sums map[metrics.Key]int64) error
	CountsSince(ctx context.Context, since time.Time) (map[time.Time]int, error)
	Close() error
}

// DB implements Store on ClickHouse. ReplacingMergeTree keyed by updated_at
// makes re-running a date's bounds or sum pass converge to a single row per
// (metric, date): the replace is a plain versioned insert, atomic per batch,
// so a partial replacement is never observable.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects and ensures the trend datapoint table exists.
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

// InitializeDB creates the trend datapoint table when missing.
func (db *DB) InitializeDB(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			metric     LowCardinality(String),
			date       Date CODEC(DoubleDelta, ZSTD(1)),
			max_rank   Int64 CODEC(Delta, ZSTD(1)),
			min_value  Int64 CODEC(Delta, ZSTD(3)),
			max_value  Int64 CODEC(Delta, ZSTD(3)),
			sum        Int64 CODEC(Delta, ZSTD(3)),
			updated_at DateTime64(6) CODEC(DoubleDelta, ZSTD(1))
		) ENGINE = %s(updated_at)
		ORDER BY (metric, date)
	`, db.Name, TableName, clickhouse.ReplacingMergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

// Get returns the latest (deduped) datapoint for a metric and day.
func (db *DB) Get(ctx context.Context, metric metrics.Key, date time.Time) (*model.TrendDatapoint, error) {
	query := fmt.Sprintf(`
		SELECT metric, date, max_rank, min_value, max_value, sum
		FROM "%s"."%s" FINAL
		WHERE metric = ? AND date = ?
		LIMIT 1
	`, db.Name, TableName)

	var (
		out       model.TrendDatapoint
		metricRaw string
	)
	err := db.QueryRow(ctx, query, string(metric), trends.Day(date)).Scan(
		&metricRaw, &out.Date, &out.MaxRank, &out.MinValue, &out.MaxValue, &out.Sum,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, metric, trends.Day(date).Format("2006-01-02"))
		}
		return nil, err
	}
	out.Metric = metrics.Key(metricRaw)
	return &out, nil
}

// GetForDate returns every metric's datapoint for a day.
func (db *DB) GetForDate(ctx context.Context, date time.Time) ([]model.TrendDatapoint, error) {
	query := fmt.Sprintf(`
		SELECT metric, date, max_rank, min_value, max_value, sum
		FROM "%s"."%s" FINAL
		WHERE date = ?
		ORDER BY metric ASC
	`, db.Name, TableName)

	rows, err := db.Query(ctx, query, trends.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrendDatapoint
	for rows.Next() {
		var (
			dp        model.TrendDatapoint
			metricRaw string
		)
		if err := rows.Scan(&metricRaw, &dp.Date, &dp.MaxRank, &dp.MinValue, &dp.MaxValue, &dp.Sum); err != nil {
			return nil, err
		}
		dp.Metric = metrics.Key(metricRaw)
		out = append(out, dp)
	}

	return out, rows.Err()
}

// ReplaceForDate writes the full datapoint set for a day in one batch. The
// batch is atomic; rerunning the same date converges on identical rows.
func (db *DB) ReplaceForDate(ctx context.Context, date time.Time, datapoints []model.TrendDatapoint) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		metric, date, max_rank, min_value, max_value, sum, updated_at
	) VALUES`, db.Name, TableName)

	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	now := time.Now().UTC()
	day := trends.Day(date)
	for _, dp := range datapoints {
		if err := batch.Append(
			string(dp.Metric), day, dp.MaxRank, dp.MinValue, dp.MaxValue, dp.Sum, now,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}

// SetSums upgrades a day's datapoints with their computed sums, keeping the
// stored bounds. Metrics absent from sums keep the pending sentinel.
func (db *DB) SetSums(ctx context.Context, date time.Time, sums map[metrics.Key]int64) error {
	current, err := db.GetForDate(ctx, date)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return fmt.Errorf("%w: no bounds stored for %s", ErrNotFound, trends.Day(date).Format("2006-01-02"))
	}

	updated := make([]model.TrendDatapoint, 0, len(current))
	for _, dp := range current {
		if sum, ok := sums[dp.Metric]; ok {
			dp.Sum = sum
		}
		updated = append(updated, dp)
	}

	return db.ReplaceForDate(ctx, date, updated)
}

// CountsSince returns, per day since the given date, how many metric rows are
// stored. The caller compares against the catalog size to find missing days.
func (db *DB) CountsSince(ctx context.Context, since time.Time) (map[time.Time]int, error) {
	query := fmt.Sprintf(`
		SELECT date, uniqExact(metric) AS stored
		FROM "%s"."%s"
		WHERE date >= ?
		GROUP BY date
	`, db.Name, TableName)

	rows, err := db.Query(ctx, query, trends.Day(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[time.Time]int)
	for rows.Next() {
		var (
			date   time.Time
			stored uint64
		)
		if err := rows.Scan(&date, &stored); err != nil {
			return nil, err
		}
		out[trends.Day(date)] = int(stored)
	}

	return out, rows.Err()
}

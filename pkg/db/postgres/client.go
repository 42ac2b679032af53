package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/retry"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/utils"
)

// Executor is implemented by both *pgxpool.Pool and pgx.Tx, so store methods
// can run against the pool or inside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// New connects to Postgres using the POSTGRES_URL DSN.
func New(ctx context.Context, logger *zap.Logger) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client := Client{Logger: logger}

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/postgres")
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	config.MinConns = int32(utils.EnvInt("POSTGRES_MIN_CONNS", 2))
	config.MaxConns = int32(utils.EnvInt("POSTGRES_MAX_CONNS", 20))
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	retryErr := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}

		client.Pool = pool
		return nil
	})
	if retryErr != nil {
		return Client{}, retryErr
	}

	logger.Info("PostgreSQL connection pool configured",
		zap.Int32("min_conns", config.MinConns),
		zap.Int32("max_conns", config.MaxConns))

	return client, nil
}

// Exec runs a statement against the pool.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.Pool.Exec(ctx, sql, args...)
	return err
}

// QueryRow returns a single row.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.Pool.QueryRow(ctx, sql, args...)
}

// Query returns multiple rows.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.Pool.Query(ctx, sql, args...)
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (c *Client) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Close shuts down the pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// IsNoRows reports whether err is pgx's empty-result error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

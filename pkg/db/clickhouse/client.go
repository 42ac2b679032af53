package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/retry"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/utils"
)

// Client wraps a ClickHouse connection pool used by the snapshot and trend
// datapoint stores.
type Client struct {
	Logger   *zap.Logger
	Db       driver.Conn
	Database string
}

const (
	MergeTree          = "MergeTree"
	ReplacingMergeTree = "ReplacingMergeTree"
)

// New connects to ClickHouse using the CLICKHOUSE_ADDR DSN and ensures the
// target database exists. The initial connection goes through the default
// database so the target can be created on first boot.
func New(ctx context.Context, logger *zap.Logger, dbName string) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client := Client{Logger: logger, Database: dbName}

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	username, password := extractCredentials(dsn)
	hosts := extractHosts(dsn)

	options := &clickhouse.Options{
		Addr: hosts,
		Auth: clickhouse.Auth{
			Database: "default",
			Username: username,
			Password: password,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: time.Hour,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	}

	err := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("failed to open clickhouse connection: %w", err)
		}
		if err = conn.Ping(connCtx); err != nil {
			return fmt.Errorf("failed to ping clickhouse: %w", err)
		}
		client.Db = conn
		return nil
	})
	if err != nil {
		return Client{}, err
	}

	if err := client.CreateDbIfNotExists(connCtx, dbName); err != nil {
		return Client{}, err
	}

	logger.Info("ClickHouse connection pool configured",
		zap.String("database", dbName),
		zap.Strings("hosts", hosts))

	return client, nil
}

// CreateDbIfNotExists creates the target database when missing.
func (c Client) CreateDbIfNotExists(ctx context.Context, name string) error {
	return c.Db.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, SanitizeName(name)))
}

// Exec runs a statement against the pool.
func (c Client) Exec(ctx context.Context, query string, args ...any) error {
	return c.Db.Exec(ctx, query, args...)
}

// Select scans multiple rows into dest.
func (c Client) Select(ctx context.Context, dest any, query string, args ...any) error {
	return c.Db.Select(ctx, dest, query, args...)
}

// QueryRow returns a single row.
func (c Client) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return c.Db.QueryRow(ctx, query, args...)
}

// Query returns multiple rows for manual scanning.
func (c Client) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.Db.Query(ctx, query, args...)
}

// PrepareBatch starts a batched insert.
func (c Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Db.PrepareBatch(ctx, query)
}

// Close terminates the underlying connection pool.
func (c Client) Close() error {
	return c.Db.Close()
}

// SanitizeName sanitizes a database or table name for ClickHouse.
func SanitizeName(id string) string {
	s := strings.ToLower(id)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

// extractHosts parses comma-separated host addresses from the DSN.
func extractHosts(dsn string) []string {
	cleaned := strings.TrimPrefix(dsn, "clickhouse://")
	cleaned = strings.TrimPrefix(cleaned, "tcp://")

	hostPart := cleaned
	if idx := strings.Index(cleaned, "@"); idx != -1 {
		hostPart = cleaned[idx+1:]
	}
	if idx := strings.IndexAny(hostPart, "/?"); idx != -1 {
		hostPart = hostPart[:idx]
	}

	hosts := make([]string, 0, 1)
	for _, h := range strings.Split(hostPart, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return []string{"localhost:9000"}
	}
	return hosts
}

// extractCredentials parses username/password out of the DSN, defaulting to
// the "default" user.
func extractCredentials(dsn string) (string, string) {
	dsn = strings.TrimPrefix(dsn, "clickhouse://")
	dsn = strings.TrimPrefix(dsn, "tcp://")

	atIdx := strings.Index(dsn, "@")
	if atIdx == -1 {
		return "default", ""
	}

	creds := dsn[:atIdx]
	if colonIdx := strings.Index(creds, ":"); colonIdx != -1 {
		return creds[:colonIdx], creds[colonIdx+1:]
	}
	return creds, ""
}

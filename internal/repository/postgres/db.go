// Package postgres implements repository.Store on PostgreSQL using a pgx
// connection pool. It is the production store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/repository"
)

//go:embed schema.sql
var schema string

var _ repository.Store = (*DB)(nil)

// DB wraps a pgx connection pool and implements every repository.
type DB struct {
	Pool   *pgxpool.Pool
	retry  repository.RetryPolicy
	logger *slog.Logger
}

// New creates the connection pool, verifies it with a ping (retried while
// the database is still coming up) and applies the schema.
func New(ctx context.Context, cfg config.DatabaseConfig, retry repository.RetryPolicy, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	if logger.Enabled(ctx, slog.LevelDebug) {
		poolConfig.ConnConfig.Tracer = &queryTracer{logger: logger}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating connection pool: %w", err)
	}

	retry.Transient = Transient
	db := &DB{Pool: pool, retry: retry, logger: logger}

	if err := retry.Do(ctx, "postgres.ping", db.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to PostgreSQL",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.Int("port", int(poolConfig.ConnConfig.Port)),
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)
	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: applying schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	db.logger.Info("database connection pool closed")
	return nil
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Transient extends repository.IsTransient with pgconn's own judgement of
// whether a failed statement never reached the server.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P01..57P03: admin shutdown,
		// crash shutdown, cannot connect now.
		switch {
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return true
		}
		return false
	}
	return repository.IsTransient(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// exec runs a write statement under the retry policy.
func (db *DB) exec(ctx context.Context, op, query string, args ...any) (pgconn.CommandTag, error) {
	return repository.Retry(ctx, db.retry, op, func(ctx context.Context) (pgconn.CommandTag, error) {
		return db.Pool.Exec(ctx, query, args...)
	})
}

// queryRow runs a single-row statement (reads and INSERT ... RETURNING)
// under the retry policy.
func (db *DB) queryRow(ctx context.Context, op, query string, args []any, dest ...any) error {
	return db.retry.Do(ctx, op, func(ctx context.Context) error {
		return db.Pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
}

// collect runs a multi-row read under the retry policy and maps every row.
func collect[T any](ctx context.Context, db *DB, op, query string, args []any, fn pgx.RowToFunc[T]) ([]T, error) {
	return repository.Retry(ctx, db.retry, op, func(ctx context.Context) ([]T, error) {
		rows, err := db.Pool.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out, err := pgx.CollectRows(rows, fn)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = make([]T, 0)
		}
		return out, nil
	})
}

// queryTracer implements pgx.QueryTracer for debug logging.
type queryTracer struct {
	logger *slog.Logger
}

type traceQueryCtxKey struct{}

type traceQueryData struct {
	sql       string
	startTime time.Time
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceQueryCtxKey{}, &traceQueryData{
		sql:       data.SQL,
		startTime: time.Now(),
	})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	queryData, ok := ctx.Value(traceQueryCtxKey{}).(*traceQueryData)
	if !ok {
		return
	}

	attrs := []any{
		slog.String("sql", queryData.sql),
		slog.Duration("duration", time.Since(queryData.startTime)),
		slog.String("command_tag", data.CommandTag.String()),
	}
	if data.Err != nil {
		attrs = append(attrs, slog.String("error", data.Err.Error()))
	}
	t.logger.DebugContext(ctx, "query executed", attrs...)
}

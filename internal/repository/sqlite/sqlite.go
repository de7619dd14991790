// Package sqlite implements repository.Store on top of modernc.org/sqlite,
// a pure Go SQLite build. It backs local development, single-node
// deployments and every repository-level test (":memory:").
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/blog-platform/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements every repository.
type DB struct {
	conn  *sql.DB
	retry repository.RetryPolicy
}

// New opens the database at dbPath, applies pragmas and runs migrations.
//
// dbPath examples:
//   - "data/blog.db" → file-based database
//   - ":memory:"     → in-memory database, used by tests
//
// The pool is capped at one connection: SQLite serializes writers anyway,
// and an in-memory database exists only inside the connection that made it.
func New(dbPath string, retry repository.RetryPolicy) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn, retry: retry}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Reference columns (author_id, category_id,
// user_id, blog_id) intentionally carry no FOREIGN KEY clause: deleting a
// parent leaves children in place and reads LEFT JOIN to a NULL parent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			bio        TEXT NOT NULL DEFAULT '',
			avatar     TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			slug       TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating categories table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS blogs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			author_id      INTEGER NOT NULL,
			category_id    INTEGER NOT NULL,
			title          TEXT NOT NULL,
			slug           TEXT NOT NULL UNIQUE,
			blog_content   TEXT NOT NULL,
			featured_image TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_blogs_author_id ON blogs(author_id);
		CREATE INDEX IF NOT EXISTS idx_blogs_category_id ON blogs(category_id);
		CREATE INDEX IF NOT EXISTS idx_blogs_created_at ON blogs(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating blogs table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL,
			blog_id    INTEGER NOT NULL,
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_blog_id ON comments(blog_id);
		CREATE INDEX IF NOT EXISTS idx_comments_user_id ON comments(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	return nil
}

// exec runs a write statement under the retry policy.
func (db *DB) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	return repository.Retry(ctx, db.retry, op, func(ctx context.Context) (sql.Result, error) {
		return db.conn.ExecContext(ctx, query, args...)
	})
}

// queryRow runs a single-row read under the retry policy. scan receives the
// row and must return sql.ErrNoRows untouched so callers can map it.
func (db *DB) queryRow(ctx context.Context, op, query string, args []any, scan func(*sql.Row) error) error {
	return db.retry.Do(ctx, op, func(ctx context.Context) error {
		return scan(db.conn.QueryRowContext(ctx, query, args...))
	})
}

// query runs a multi-row read under the retry policy. each is called per
// row; rows are always closed before the next attempt or return.
func (db *DB) query(ctx context.Context, op, query string, args []any, reset func(), each func(*sql.Rows) error) error {
	return db.retry.Do(ctx, op, func(ctx context.Context) error {
		reset()
		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			if err := each(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// affectedOne reports apperror-friendly "not found" when a write matched no row.
func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func now() time.Time {
	return time.Now().UTC()
}

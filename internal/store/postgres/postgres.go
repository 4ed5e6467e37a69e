// Package postgres stores users, documents, chat messages and query events
// in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/getchdocs/getchdocs-api/pkg/apperr"
)

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Client wraps the connection pool.
type Client struct {
	DB *sql.DB
}

// Open connects and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

// NewFromDB wraps an existing pool.
func NewFromDB(db *sql.DB) *Client {
	return &Client{DB: db}
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks connectivity. Used by the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		role       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		size        BIGINT NOT NULL,
		type        TEXT NOT NULL,
		content     TEXT NOT NULL,
		uploaded_by TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS documents_uploaded_at_idx ON documents (uploaded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq                 BIGSERIAL PRIMARY KEY,
		id                  TEXT NOT NULL UNIQUE,
		user_id             TEXT NOT NULL,
		role                TEXT NOT NULL,
		content             TEXT NOT NULL,
		document_references TEXT[] NOT NULL DEFAULT '{}',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_user_idx ON messages (user_id, seq)`,
	`CREATE TABLE IF NOT EXISTS analytics (
		seq                  BIGSERIAL PRIMARY KEY,
		id                   TEXT NOT NULL UNIQUE,
		query                TEXT NOT NULL,
		user_id              TEXT NOT NULL,
		user_name            TEXT NOT NULL,
		documents_referenced TEXT[] NOT NULL DEFAULT '{}',
		response_time_ms     BIGINT NOT NULL,
		timestamp            TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS analytics_timestamp_idx ON analytics (timestamp DESC)`,
}

// Migrate creates the tables if they do not exist.
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

const uniqueViolation = "23505"

// mapError turns driver errors into the shared sentinels.
func mapError(err error, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.ErrNotFound, notFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if pqErr.Constraint == "users_email_key" {
			return apperr.New(apperr.ErrConflict, "email already registered")
		}
		return apperr.New(apperr.ErrConflict, "already exists")
	}
	return err
}

func expectAffected(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.ErrNotFound, notFound)
	}
	return nil
}

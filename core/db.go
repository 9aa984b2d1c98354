package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultDatabaseMaxConns = 10

// usersSchema creates the table PgUserRepository reads and writes. Widths of
// the byte columns are enforced by Config.Validate, not by the database.
const usersSchema = `CREATE TABLE IF NOT EXISTS users (
	id              bigserial PRIMARY KEY,
	name            text NOT NULL UNIQUE,
	role            integer NOT NULL DEFAULT 0 CHECK (role >= 0),
	password_hash   bytea NOT NULL,
	password_salt   bytea NOT NULL,
	token_timestamp timestamptz,
	token           bytea NOT NULL,
	created_at      timestamptz NOT NULL DEFAULT now()
)`

// Connect opens the pgx pool backing the user store and checks it answers.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("empty database dsn")
	}
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.MaxConns = int32(cfg.DatabaseMaxConns)
	if pc.MaxConns <= 0 {
		pc.MaxConns = defaultDatabaseMaxConns
	}
	pc.MinConns = 1
	pc.MaxConnLifetime = 30 * time.Minute
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the users table if it is missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, usersSchema); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

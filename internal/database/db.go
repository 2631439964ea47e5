package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/config"
)

// Connect creates a pgx connection pool from configuration and verifies it.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, log *logrus.Logger) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"host": cfg.Host,
		"name": cfg.Name,
	}).Info("Connected to PostgreSQL")

	return pool, nil
}

// EnsureSchema creates the users table if it does not exist. The email column
// carries the unique constraint the write-behind flush relies on for
// idempotent creates.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			age INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

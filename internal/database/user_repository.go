package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/models"
)

// UserRepository handles user database operations. It is the durable-store
// facade consumed by the cache engine: point lookup, insert, idempotent
// upsert, update and delete by identity. Absence is reported as
// models.ErrNotFound (lookup, update) or a false bool (delete), never as a
// transport error.
type UserRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool, log *logrus.Logger) *UserRepository {
	return &UserRepository{
		pool: pool,
		log:  log,
	}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, name, email, age
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Age,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return user, nil
}

// Insert creates a new user and returns it with its database-assigned ID.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, age)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, age
	`

	created := &models.User{}
	err := r.pool.QueryRow(ctx, query, user.Name, user.Email, user.Age).Scan(
		&created.ID, &created.Name, &created.Email, &created.Age,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return created, nil
}

// Upsert inserts a user keyed by email, updating name and age on conflict.
// Duplicate deliveries of the same queued create collapse into one row.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, age)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, age = EXCLUDED.age, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, user.Name, user.Email, user.Age); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// Update applies new attributes to the user with the given ID and returns the
// updated row, or models.ErrNotFound when the ID is absent.
func (r *UserRepository) Update(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	query := `
		UPDATE users
		SET name = $1, email = $2, age = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, email, age
	`

	updated := &models.User{}
	err := r.pool.QueryRow(ctx, query, user.Name, user.Email, user.Age, id).Scan(
		&updated.ID, &updated.Name, &updated.Email, &updated.Age,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}

	return updated, nil
}

// Delete removes the user with the given ID. It reports false, without error,
// when the ID is absent.
func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the part of *pgxpool.Pool the preferences table needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository is a Postgres-backed preference key/value store.
type Repository struct {
	q    Querier
	ping func(ctx context.Context) error
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	r := &Repository{q: pool}
	if pool != nil {
		r.ping = pool.Ping
	}
	return r
}

// NewRepositoryWithQuerier constructs a Repository over q. It has no health check.
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// Get returns the value stored under key. found is false when the key has never been set.
func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM preferences WHERE key = $1`

	var value string
	if err := r.q.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying preference %s: %w", key, err)
	}

	return value, true, nil
}

// Set upserts key. It returns after the statement has committed.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO preferences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value      = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := r.q.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("upserting preference %s: %w", key, err)
	}

	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const uniqueViolation = "23505"

// Repository provides access to the daily_renders table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new render repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether a render is already recorded for (city, date).
func (r *Repository) Exists(ctx context.Context, city, date string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_renders WHERE city ILIKE $1 AND date = $2::date);`,
		city, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check render existence: %w", err)
	}
	return exists, nil
}

// Insert records a produced render. The (lower(city), date) unique
// index is the authoritative guard against concurrent runs; losing the
// race is reported as ErrAlreadyRendered.
func (r *Repository) Insert(ctx context.Context, rec DailyRender) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO daily_renders (city, date, video_key) VALUES ($1, $2::date, $3);`,
		rec.City, rec.Date, rec.VideoKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyRendered
		}
		return fmt.Errorf("insert daily render: %w", err)
	}
	return nil
}

// GetVideoKey returns the object key of the (city, date) video.
func (r *Repository) GetVideoKey(ctx context.Context, city, date string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var key string
	err := r.pool.QueryRow(ctx,
		`SELECT video_key FROM daily_renders WHERE city ILIKE $1 AND date = $2::date;`,
		city, date).Scan(&key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get video key: %w", err)
	}
	return key, nil
}

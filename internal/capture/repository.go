package capture

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

// Repository provides access to capture metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new capture repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records a new capture. A unique violation on key is reported as
// ErrDuplicateKey so callers can treat a redelivered event as done.
func (r *Repository) Insert(ctx context.Context, c Capture) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO captures (key, city, country_code, device_id, captured_at, temperature, humidity, pressure)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := r.pool.Exec(ctx, query,
		c.Key,
		c.City,
		c.CountryCode,
		c.DeviceID,
		c.CapturedAt,
		c.Temperature,
		c.Humidity,
		c.Pressure,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert capture: %w", err)
	}
	return nil
}

// UpdateWeatherIfMissing backfills weather fields that are still null.
// Values already present (client-supplied at upload time) are kept.
func (r *Repository) UpdateWeatherIfMissing(ctx context.Context, key string, temperature, humidity, pressure float64) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE captures
SET temperature = COALESCE(temperature, $2),
    humidity    = COALESCE(humidity, $3),
    pressure    = COALESCE(pressure, $4)
WHERE key = $1;`

	if _, err := r.pool.Exec(ctx, query, key, temperature, humidity, pressure); err != nil {
		return fmt.Errorf("backfill weather: %w", err)
	}
	return nil
}

// ExistsByKey reports whether a capture row exists for the key.
func (r *Repository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM captures WHERE key = $1);`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check capture existence: %w", err)
	}
	return exists, nil
}

// GetByKey fetches one capture.
func (r *Repository) GetByKey(ctx context.Context, key string) (Capture, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT key, city, country_code, device_id, captured_at, temperature, humidity, pressure, created_at
FROM captures
WHERE key = $1;`

	var c Capture
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&c.Key, &c.City, &c.CountryCode, &c.DeviceID, &c.CapturedAt,
		&c.Temperature, &c.Humidity, &c.Pressure, &c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Capture{}, ErrNotFound
		}
		return Capture{}, fmt.Errorf("get capture: %w", err)
	}
	return c, nil
}

// ListLatest returns the most recent captures across all cities.
func (r *Repository) ListLatest(ctx context.Context, limit int) ([]Capture, error) {
	query := `
SELECT key, city, country_code, device_id, captured_at, temperature, humidity, pressure, created_at
FROM captures
ORDER BY captured_at DESC
LIMIT $1;`

	return r.queryCaptures(ctx, query, limit)
}

// ListCityLatest returns the most recent captures for one city.
func (r *Repository) ListCityLatest(ctx context.Context, city string, limit int) ([]Capture, error) {
	query := `
SELECT key, city, country_code, device_id, captured_at, temperature, humidity, pressure, created_at
FROM captures
WHERE city ILIKE $1
ORDER BY captured_at DESC
LIMIT $2;`

	return r.queryCaptures(ctx, query, city, limit)
}

// ListCityDate returns all captures for a city on one calendar date,
// ordered by capture time ascending (the frame order for timelapses).
func (r *Repository) ListCityDate(ctx context.Context, city, date string) ([]Capture, error) {
	query := `
SELECT key, city, country_code, device_id, captured_at, temperature, humidity, pressure, created_at
FROM captures
WHERE city ILIKE $1 AND (captured_at AT TIME ZONE 'UTC')::date = $2::date
ORDER BY captured_at ASC;`

	return r.queryCaptures(ctx, query, city, date)
}

// ListDates returns the distinct calendar dates with captures for a
// city, newest first, formatted YYYY-MM-DD.
func (r *Repository) ListDates(ctx context.Context, city string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT DISTINCT (captured_at AT TIME ZONE 'UTC')::date AS date
FROM captures
WHERE city ILIKE $1
ORDER BY date DESC;`

	rows, err := r.pool.Query(ctx, query, city)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d.Format("2006-01-02"))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates: %w", err)
	}
	return dates, nil
}

// DistinctCitiesOn returns every city with at least one capture on the
// given calendar date.
func (r *Repository) DistinctCitiesOn(ctx context.Context, date string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT DISTINCT city
FROM captures
WHERE (captured_at AT TIME ZONE 'UTC')::date = $1::date;`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list cities for date: %w", err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}
	return cities, nil
}

// ListCities returns distinct (city, country_code) pairs, ascending.
func (r *Repository) ListCities(ctx context.Context) ([]CityInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT DISTINCT city, country_code
FROM captures
ORDER BY city ASC;`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	var cities []CityInfo
	for rows.Next() {
		var info CityInfo
		if err := rows.Scan(&info.Name, &info.CountryCode); err != nil {
			return nil, fmt.Errorf("scan city info: %w", err)
		}
		cities = append(cities, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate city info: %w", err)
	}
	return cities, nil
}

func (r *Repository) queryCaptures(ctx context.Context, query string, args ...any) ([]Capture, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		var c Capture
		if err := rows.Scan(
			&c.Key, &c.City, &c.CountryCode, &c.DeviceID, &c.CapturedAt,
			&c.Temperature, &c.Humidity, &c.Pressure, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captures: %w", err)
	}
	return captures, nil
}

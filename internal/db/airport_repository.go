package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/unklstewy/ads-proximity/pkg/config"
)

// AirportRepository stores the reference airports.
type AirportRepository struct {
	db *DB
}

// NewAirportRepository creates a new airport repository
func NewAirportRepository(db *DB) *AirportRepository {
	return &AirportRepository{db: db}
}

// List returns all airports ordered by code
func (r *AirportRepository) List(ctx context.Context) ([]config.AirportConfig, error) {
	query := `
		SELECT code, name, latitude, longitude, elevation_meters
		FROM airports
		ORDER BY code ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query airports: %w", err)
	}
	defer rows.Close()

	var airports []config.AirportConfig
	for rows.Next() {
		var a config.AirportConfig
		err := rows.Scan(
			&a.Code,
			&a.Name,
			&a.Latitude,
			&a.Longitude,
			&a.Elevation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		airports = append(airports, a)
	}

	return airports, rows.Err()
}

// Get returns one airport by code
func (r *AirportRepository) Get(ctx context.Context, code string) (*config.AirportConfig, error) {
	query := r.db.rebind(`
		SELECT code, name, latitude, longitude, elevation_meters
		FROM airports
		WHERE code = ?
	`)

	var a config.AirportConfig
	err := r.db.QueryRowContext(ctx, query, normalizeCode(code)).Scan(
		&a.Code,
		&a.Name,
		&a.Latitude,
		&a.Longitude,
		&a.Elevation,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("airport %s: %w", normalizeCode(code), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get airport: %w", err)
	}

	return &a, nil
}

// Upsert creates an airport or replaces the stored one with the same code
func (r *AirportRepository) Upsert(ctx context.Context, a config.AirportConfig) error {
	code := normalizeCode(a.Code)
	if code == "" {
		return fmt.Errorf("airport %q has no code", a.Name)
	}

	query := r.db.rebind(`
		INSERT INTO airports (code, name, latitude, longitude, elevation_meters, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation_meters = excluded.elevation_meters,
			updated_at = CURRENT_TIMESTAMP
	`)

	_, err := r.db.ExecContext(ctx, query, code, a.Name, a.Latitude, a.Longitude, a.Elevation)
	if err != nil {
		return fmt.Errorf("failed to upsert airport %s: %w", code, err)
	}
	return nil
}

// Delete removes an airport
func (r *AirportRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM airports WHERE code = ?`), normalizeCode(code))
	if err != nil {
		return fmt.Errorf("failed to delete airport: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("airport %s: %w", normalizeCode(code), ErrNotFound)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package db

import (
	"context"
	"fmt"

	"github.com/unklstewy/ads-proximity/pkg/proximity"
)

// ThresholdRepository stores the per-category separation bounds.
type ThresholdRepository struct {
	db *DB
}

// NewThresholdRepository creates a new threshold repository
func NewThresholdRepository(db *DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// Load reads the stored table. It returns ErrNotFound when no rows exist
// and a wrapped proximity.ErrInvalidThresholdTable when the rows do not
// form a valid table.
func (r *ThresholdRepository) Load(ctx context.Context) (proximity.ThresholdTable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, low_meters, medium_meters, high_meters
		FROM proximity_thresholds
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	table := make(proximity.ThresholdTable)
	for rows.Next() {
		var (
			name string
			t    proximity.Thresholds
		)
		if err := rows.Scan(&name, &t.Low, &t.Medium, &t.High); err != nil {
			return nil, fmt.Errorf("failed to scan thresholds: %w", err)
		}
		cat, err := proximity.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("stored thresholds: %w: %v", proximity.ErrInvalidThresholdTable, err)
		}
		table[cat] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("thresholds: %w", ErrNotFound)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("stored thresholds: %w", err)
	}
	return table, nil
}

// Save validates table and replaces every stored row in one transaction.
func (r *ThresholdRepository) Save(ctx context.Context, table proximity.ThresholdTable) error {
	if err := table.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM proximity_thresholds`); err != nil {
		return fmt.Errorf("failed to clear thresholds: %w", err)
	}

	insert := r.db.rebind(`
		INSERT INTO proximity_thresholds (category, low_meters, medium_meters, high_meters)
		VALUES (?, ?, ?, ?)
	`)
	for _, cat := range proximity.Categories {
		t := table[cat]
		if _, err := tx.ExecContext(ctx, insert, string(cat), t.Low, t.Medium, t.High); err != nil {
			return fmt.Errorf("failed to insert %s thresholds: %w", cat, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thresholds: %w", err)
	}
	return nil
}

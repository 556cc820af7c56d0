package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/citydata/crimewatch/internal/database"
	"github.com/citydata/crimewatch/internal/etl"
)

// DimensionRepository replaces the contents of the reference tables.
type DimensionRepository interface {
	// ReplaceAll deletes and reloads every table in one transaction
	// spanning the whole run. A failure on any table rolls back all of
	// them; a mid-run crash never leaves some tables emptied and others
	// untouched.
	ReplaceAll(ctx context.Context, batches []etl.DimensionBatch) error
}

// dimensionRepository is the concrete pgx-backed implementation.
type dimensionRepository struct {
	db *database.Database
}

// NewDimensionRepository creates a new instance of DimensionRepository.
func NewDimensionRepository(db *database.Database) DimensionRepository {
	return &dimensionRepository{db: db}
}

func (r *dimensionRepository) ReplaceAll(ctx context.Context, batches []etl.DimensionBatch) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin dimension transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, batch := range batches {
		// Table names come from the static dimension descriptors, never
		// from input.
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", batch.Table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", batch.Table, err)
		}

		if len(batch.Rows) == 0 {
			continue
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{batch.Table},
			batch.Columns,
			pgx.CopyFromRows(batch.Rows),
		); err != nil {
			return fmt.Errorf("failed to load %d rows into %s: %w", len(batch.Rows), batch.Table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dimension replacement: %w", err)
	}
	return nil
}

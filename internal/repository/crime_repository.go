package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/citydata/crimewatch/internal/database"
	"github.com/citydata/crimewatch/internal/models"
)

// crimeTable is owned by the model; the loader and the checkpoint queries
// take the name from there rather than repeating the literal.
var crimeTable = models.CrimeRecord{}.TableName()

// crimeColumns is the column order used for bulk loads. Must match the
// crime_records DDL.
var crimeColumns = []string{
	"id", "case_number", "date", "updated_on",
	"block", "iucr", "primary_type", "description", "location_description",
	"arrest", "domestic",
	"beat", "district", "ward", "community_area", "fbi_code",
	"x_coordinate", "y_coordinate", "latitude", "longitude",
	"year",
}

// CrimeRepository defines data access for the crime fact table.
type CrimeRepository interface {
	// BulkInsert writes the whole batch in a single transaction. Any
	// constraint violation (duplicate id, type mismatch) rolls back the
	// entire batch; there are no partial loads. An empty batch is a no-op.
	// Returns the number of rows committed.
	BulkInsert(ctx context.Context, records []models.CrimeRecord) (int64, error)

	// MaxDate returns the latest incident timestamp, or nil when the table
	// is empty.
	MaxDate(ctx context.Context) (*time.Time, error)

	// Count returns the number of stored crime records.
	Count(ctx context.Context) (int64, error)
}

// crimeRepository is the concrete pgx-backed implementation.
type crimeRepository struct {
	db *database.Database
}

// NewCrimeRepository creates a new instance of CrimeRepository.
func NewCrimeRepository(db *database.Database) CrimeRepository {
	return &crimeRepository{db: db}
}

// BulkInsert streams the batch into crime_records with COPY inside one
// transaction. COPY aborts on the first bad row, and the rollback discards
// everything already streamed, so a failed batch is fully retryable.
func (r *crimeRepository) BulkInsert(ctx context.Context, records []models.CrimeRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rows[i] = []interface{}{
			rec.ID, rec.CaseNumber, rec.Date, rec.UpdatedOn,
			rec.Block, rec.IUCR, rec.PrimaryType, rec.Description, rec.LocationDescription,
			rec.Arrest, rec.Domestic,
			rec.Beat, rec.District, rec.Ward, rec.CommunityArea, rec.FBICode,
			rec.XCoordinate, rec.YCoordinate, rec.Latitude, rec.Longitude,
			rec.Year,
		}
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bulk insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{crimeTable},
		crimeColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk insert of %d crime records failed: %w", len(records), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit bulk insert: %w", err)
	}

	return copied, nil
}

// MaxDate queries the latest stored incident timestamp. MAX over an empty
// table yields SQL NULL, reported here as nil.
func (r *crimeRepository) MaxDate(ctx context.Context) (*time.Time, error) {
	var maxDate *time.Time
	err := r.db.Pool.QueryRow(ctx, `SELECT MAX(date) FROM `+crimeTable).Scan(&maxDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query max crime date: %w", err)
	}
	return maxDate, nil
}

// Count returns the number of rows in the fact table.
func (r *crimeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(id) FROM `+crimeTable).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count crime records: %w", err)
	}
	return count, nil
}

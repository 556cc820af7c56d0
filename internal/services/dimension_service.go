package services

import (
	"context"
	"fmt"
	"time"

	"github.com/citydata/crimewatch/internal/etl"
	"github.com/citydata/crimewatch/internal/logger"
	"github.com/citydata/crimewatch/internal/metrics"
	"github.com/citydata/crimewatch/internal/repository"
	"github.com/citydata/crimewatch/internal/socrata"
)

// DatasetFetcher is the remote collaborator for dimension datasets.
type DatasetFetcher interface {
	FetchDataset(ctx context.Context, datasetID string, limit int) ([]socrata.Row, error)
}

// DimensionResult reports the outcome of one reconciliation run.
type DimensionResult struct {
	Tables     map[string]int `json:"tables"` // table -> rows loaded
	RowsLoaded int            `json:"rowsLoaded"`
}

// DimensionService reconciles the reference tables against the portal.
type DimensionService interface {
	// Reconcile fetches and transforms every configured dimension, then
	// replaces all tables in a single transaction. Any table's failure
	// aborts the whole run with nothing replaced. limit overrides the
	// configured per-dataset row cap when positive.
	Reconcile(ctx context.Context, limit int) (*DimensionResult, error)
}

// dimensionService is the concrete implementation of DimensionService.
type dimensionService struct {
	repo    repository.DimensionRepository
	fetcher DatasetFetcher
	specs   []etl.DimensionSpec
	limit   int
	log     *logger.Logger
}

// NewDimensionService creates a DimensionService over the standard
// dimension descriptors.
func NewDimensionService(repo repository.DimensionRepository, fetcher DatasetFetcher, limit int, log *logger.Logger) DimensionService {
	return &dimensionService{
		repo:    repo,
		fetcher: fetcher,
		specs:   etl.DimensionSpecs(),
		limit:   limit,
		log:     log,
	}
}

func (s *dimensionService) Reconcile(ctx context.Context, limit int) (result *DimensionResult, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRun("dimensions", time.Since(started).Seconds(), err) }()

	if limit <= 0 {
		limit = s.limit
	}

	// Fetch and transform everything first; the database transaction only
	// opens once every source has answered.
	batches := make([]etl.DimensionBatch, 0, len(s.specs))
	result = &DimensionResult{Tables: make(map[string]int, len(s.specs))}

	for _, spec := range s.specs {
		rows, err := s.fetcher.FetchDataset(ctx, spec.DatasetID, limit)
		if err != nil {
			s.log.Error("Dimension fetch failed", err, map[string]interface{}{
				"dimension": spec.Name,
				"dataset":   spec.DatasetID,
			})
			return nil, fmt.Errorf("fetching %s: %w", spec.Name, err)
		}

		batch := etl.BuildBatch(spec, rows)
		if dupes := len(rows) - len(batch.Rows); dupes > 0 {
			s.log.Warn("Dropped duplicate dimension keys", map[string]interface{}{
				"dimension":  spec.Name,
				"duplicates": dupes,
			})
		}

		batches = append(batches, batch)
		result.Tables[spec.Table] = len(batch.Rows)
		result.RowsLoaded += len(batch.Rows)
	}

	if err := s.repo.ReplaceAll(ctx, batches); err != nil {
		s.log.Error("Dimension replacement rolled back", err, map[string]interface{}{
			"tables": len(batches),
		})
		return nil, fmt.Errorf("replacing dimension tables: %w", err)
	}

	metrics.RowsLoaded.WithLabelValues("dimensions").Add(float64(result.RowsLoaded))
	s.log.Info("Dimension reconciliation complete", map[string]interface{}{
		"tables":      len(batches),
		"rows_loaded": result.RowsLoaded,
	})
	return result, nil
}

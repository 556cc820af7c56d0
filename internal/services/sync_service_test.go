package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/citydata/crimewatch/internal/config"
	"github.com/citydata/crimewatch/internal/logger"
	"github.com/citydata/crimewatch/internal/models"
	"github.com/citydata/crimewatch/internal/socrata"
)

// MockCrimeRepository is a mock implementation of repository.CrimeRepository.
type MockCrimeRepository struct {
	mock.Mock
}

func (m *MockCrimeRepository) BulkInsert(ctx context.Context, records []models.CrimeRecord) (int64, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCrimeRepository) MaxDate(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockCrimeRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockCrimeFetcher is a mock implementation of CrimeFetcher.
type MockCrimeFetcher struct {
	mock.Mock
}

func (m *MockCrimeFetcher) Fetch(ctx context.Context, since time.Time, limit int) ([]socrata.Row, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]socrata.Row), args.Error(1)
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		BackfillStart: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		BackfillLimit: 100000,
		DailyLimit:    500,
	}
}

func newTestSyncService(repo *MockCrimeRepository, fetcher *MockCrimeFetcher) SyncService {
	return NewSyncService(repo, fetcher, testSyncConfig(), logger.New("test"))
}

func TestDaily_EmptyDatabaseFailsFast(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	repo.On("MaxDate", mock.Anything).Return(nil, nil)

	result, err := service.Daily(context.Background(), 0)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrEmptyDatabase)
	fetcher.AssertNotCalled(t, "Fetch")
	repo.AssertExpectations(t)
}

func TestDaily_FetchesFromCheckpointPlusOneSecond(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	checkpoint := time.Date(2024, 5, 20, 23, 59, 59, 0, time.UTC)
	expectedStart := checkpoint.Add(time.Second)

	repo.On("MaxDate", mock.Anything).Return(&checkpoint, nil)
	fetcher.On("Fetch", mock.Anything, expectedStart, 500).Return([]socrata.Row{
		{"id": "900001", "date": "2024-05-21T01:00:00.000"},
	}, nil)
	repo.On("BulkInsert", mock.Anything, mock.MatchedBy(func(records []models.CrimeRecord) bool {
		return len(records) == 1 && records[0].ID != nil && *records[0].ID == 900001
	})).Return(int64(1), nil)

	result, err := service.Daily(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, "daily", result.Mode)
	assert.Equal(t, expectedStart, result.Start)
	assert.Equal(t, 1, result.RowsFetched)
	assert.Equal(t, int64(1), result.RowsLoaded)
	repo.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestDaily_NoNewRowsIsNoOp(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	checkpoint := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	repo.On("MaxDate", mock.Anything).Return(&checkpoint, nil)
	fetcher.On("Fetch", mock.Anything, checkpoint.Add(time.Second), 500).Return([]socrata.Row{}, nil)

	result, err := service.Daily(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 0, result.RowsFetched)
	assert.Equal(t, int64(0), result.RowsLoaded)
	repo.AssertNotCalled(t, "BulkInsert")
}

func TestBackfill_NonEmptyDatabaseAborts(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	repo.On("Count", mock.Anything).Return(int64(42), nil)

	result, err := service.Backfill(context.Background(), 0)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDatabaseNotEmpty)
	fetcher.AssertNotCalled(t, "Fetch")
}

func TestBackfill_EndToEnd(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	start := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	// Three rows; one is missing latitude entirely.
	repo.On("Count", mock.Anything).Return(int64(0), nil)
	fetcher.On("Fetch", mock.Anything, start, 100000).Return([]socrata.Row{
		{"id": "1", "date": "2001-01-01T05:00:00.000", "latitude": "41.80"},
		{"id": "2", "date": "2001-01-02T06:30:00.000"},
		{"id": "3", "date": "2001-01-03T07:45:00.000", "latitude": "41.99"},
	}, nil)
	repo.On("BulkInsert", mock.Anything, mock.MatchedBy(func(records []models.CrimeRecord) bool {
		return len(records) == 3 && records[1].Latitude == nil
	})).Return(int64(3), nil)

	result, err := service.Backfill(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, "backfill", result.Mode)
	assert.Equal(t, start, result.Start)
	assert.Equal(t, 3, result.RowsFetched)
	assert.Equal(t, 3, result.RowsCoerced)
	assert.Equal(t, 0, result.RowsDropped)
	assert.Equal(t, int64(3), result.RowsLoaded)
	repo.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestBackfill_EmptyFetchIsNoOp(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	repo.On("Count", mock.Anything).Return(int64(0), nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, 100000).Return([]socrata.Row{}, nil)

	result, err := service.Backfill(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RowsLoaded)
	repo.AssertNotCalled(t, "BulkInsert")
}

func TestBackfill_DropsRowsWithoutID(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	repo.On("Count", mock.Anything).Return(int64(0), nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, 100000).Return([]socrata.Row{
		{"id": "100", "date": "2001-01-01T00:00:01.000"},
		{"id": "not-an-id", "date": "2001-01-01T00:00:02.000"},
		{"id": "101", "date": "2001-01-01T00:00:03.000"},
	}, nil)
	repo.On("BulkInsert", mock.Anything, mock.MatchedBy(func(records []models.CrimeRecord) bool {
		return len(records) == 2
	})).Return(int64(2), nil)

	result, err := service.Backfill(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 3, result.RowsFetched)
	assert.Equal(t, 3, result.RowsCoerced)
	assert.Equal(t, 1, result.RowsDropped)
	assert.Equal(t, int64(2), result.RowsLoaded)
}

func TestBackfill_LimitOverride(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	repo.On("Count", mock.Anything).Return(int64(0), nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, 250).Return([]socrata.Row{}, nil)

	_, err := service.Backfill(context.Background(), 250)
	require.NoError(t, err)
	fetcher.AssertExpectations(t)
}

func TestDaily_LoadFailurePropagates(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	checkpoint := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	loadErr := errors.New("duplicate key value violates unique constraint")

	repo.On("MaxDate", mock.Anything).Return(&checkpoint, nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, 500).Return([]socrata.Row{
		{"id": "7", "date": "2024-01-01T01:00:00.000"},
	}, nil)
	repo.On("BulkInsert", mock.Anything, mock.Anything).Return(int64(0), loadErr)

	result, err := service.Daily(context.Background(), 0)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, loadErr)
}

func TestDaily_FetchFailurePropagates(t *testing.T) {
	repo := new(MockCrimeRepository)
	fetcher := new(MockCrimeFetcher)
	service := newTestSyncService(repo, fetcher)

	checkpoint := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	transportErr := &socrata.TransportError{Dataset: "ijzp-q8t2", Status: 503}

	repo.On("MaxDate", mock.Anything).Return(&checkpoint, nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, 500).Return(nil, transportErr)

	_, err := service.Daily(context.Background(), 0)

	require.Error(t, err)
	var terr *socrata.TransportError
	assert.ErrorAs(t, err, &terr)
	repo.AssertNotCalled(t, "BulkInsert")
}

func TestNextIncrementalStart(t *testing.T) {
	repo := new(MockCrimeRepository)
	service := newTestSyncService(repo, new(MockCrimeFetcher))

	checkpoint := time.Date(2024, 5, 20, 23, 59, 59, 0, time.UTC)
	repo.On("MaxDate", mock.Anything).Return(&checkpoint, nil)

	start, err := service.NextIncrementalStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.Add(time.Second), start)
}

func TestStatus(t *testing.T) {
	repo := new(MockCrimeRepository)
	service := newTestSyncService(repo, new(MockCrimeFetcher))

	checkpoint := time.Date(2024, 5, 20, 23, 59, 59, 0, time.UTC)
	repo.On("MaxDate", mock.Anything).Return(&checkpoint, nil)
	repo.On("Count", mock.Anything).Return(int64(8_000_000), nil)

	status, err := service.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status.Checkpoint)
	assert.Equal(t, checkpoint, *status.Checkpoint)
	assert.Equal(t, int64(8_000_000), status.RecordCount)
}

func TestStatus_EmptyDatabase(t *testing.T) {
	repo := new(MockCrimeRepository)
	service := newTestSyncService(repo, new(MockCrimeFetcher))

	repo.On("MaxDate", mock.Anything).Return(nil, nil)
	repo.On("Count", mock.Anything).Return(int64(0), nil)

	status, err := service.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.Checkpoint)
	assert.Equal(t, int64(0), status.RecordCount)
}

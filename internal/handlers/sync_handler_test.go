package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/citydata/crimewatch/internal/services"
	"github.com/citydata/crimewatch/internal/socrata"
)

// MockSyncService is a mock implementation of services.SyncService.
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) Backfill(ctx context.Context, limit int) (*services.SyncResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncResult), args.Error(1)
}

func (m *MockSyncService) Daily(ctx context.Context, limit int) (*services.SyncResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncResult), args.Error(1)
}

func (m *MockSyncService) NextIncrementalStart(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSyncService) Status(ctx context.Context) (*services.SyncStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncStatus), args.Error(1)
}

// MockDimensionService is a mock implementation of services.DimensionService.
type MockDimensionService struct {
	mock.Mock
}

func (m *MockDimensionService) Reconcile(ctx context.Context, limit int) (*services.DimensionResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DimensionResult), args.Error(1)
}

func setupSyncRouter(sync *MockSyncService, dims *MockDimensionService) *gin.Engine {
	handler := NewSyncHandler(sync, dims)
	router := gin.New()
	v1 := router.Group("/api/v1/sync")
	{
		v1.POST("/daily", handler.Daily)
		v1.POST("/backfill", handler.Backfill)
		v1.POST("/dimensions", handler.Dimensions)
		v1.GET("/status", handler.Status)
	}
	return router
}

func TestSyncHandler_Daily_Success(t *testing.T) {
	sync := new(MockSyncService)
	dims := new(MockDimensionService)
	router := setupSyncRouter(sync, dims)

	sync.On("Daily", mock.Anything, 0).Return(&services.SyncResult{
		Mode:        "daily",
		RowsFetched: 120,
		RowsCoerced: 120,
		RowsLoaded:  120,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result services.SyncResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(120), result.RowsLoaded)
	sync.AssertExpectations(t)
}

func TestSyncHandler_Daily_LimitOverride(t *testing.T) {
	sync := new(MockSyncService)
	router := setupSyncRouter(sync, new(MockDimensionService))

	sync.On("Daily", mock.Anything, 5000).Return(&services.SyncResult{Mode: "daily"}, nil)

	body := strings.NewReader(`{"limit": 5000}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	sync.AssertExpectations(t)
}

func TestSyncHandler_Daily_InvalidLimit(t *testing.T) {
	sync := new(MockSyncService)
	router := setupSyncRouter(sync, new(MockDimensionService))

	body := strings.NewReader(`{"limit": -5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	sync.AssertNotCalled(t, "Daily")
}

func TestSyncHandler_Daily_EmptyDatabaseIsConflict(t *testing.T) {
	sync := new(MockSyncService)
	router := setupSyncRouter(sync, new(MockDimensionService))

	sync.On("Daily", mock.Anything, 0).Return(nil, services.ErrEmptyDatabase)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSyncHandler_Backfill_NotEmptyIsConflict(t *testing.T) {
	sync := new(MockSyncService)
	router := setupSyncRouter(sync, new(MockDimensionService))

	sync.On("Backfill", mock.Anything, 0).Return(nil, services.ErrDatabaseNotEmpty)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/backfill", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSyncHandler_Daily_TransportErrorIsBadGateway(t *testing.T) {
	sync := new(MockSyncService)
	router := setupSyncRouter(sync, new(MockDimensionService))

	sync.On("Daily", mock.Anything, 0).Return(nil,
		&socrata.TransportError{Dataset: "ijzp-q8t2", Status: 503})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSyncHandler_Dimensions_Success(t *testing.T) {
	dims := new(MockDimensionService)
	router := setupSyncRouter(new(MockSyncService), dims)

	dims.On("Reconcile", mock.Anything, 0).Return(&services.DimensionResult{
		Tables:     map[string]int{"dim_wards": 50},
		RowsLoaded: 50,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/dimensions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result services.DimensionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 50, result.RowsLoaded)
}

func TestSyncHandler_Status(t *testing.T) {
	sync := new(MockSyncService)
	router := setupSyncRouter(sync, new(MockDimensionService))

	checkpoint := time.Date(2024, 5, 20, 23, 59, 59, 0, time.UTC)
	sync.On("Status", mock.Anything).Return(&services.SyncStatus{
		Checkpoint:  &checkpoint,
		RecordCount: 8000000,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status services.SyncStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotNil(t, status.Checkpoint)
	assert.True(t, status.Checkpoint.Equal(checkpoint))
	assert.Equal(t, int64(8000000), status.RecordCount)
}

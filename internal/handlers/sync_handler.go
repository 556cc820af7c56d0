package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/citydata/crimewatch/internal/errors"
	"github.com/citydata/crimewatch/internal/services"
	"github.com/citydata/crimewatch/internal/socrata"
)

// SyncHandler exposes the sync orchestrators over HTTP so an external
// scheduler or operator can trigger runs and inspect state.
type SyncHandler struct {
	sync       services.SyncService
	dimensions services.DimensionService
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(sync services.SyncService, dimensions services.DimensionService) *SyncHandler {
	return &SyncHandler{
		sync:       sync,
		dimensions: dimensions,
	}
}

// SyncRequest represents the optional body for sync trigger endpoints.
type SyncRequest struct {
	// Limit overrides the configured fetch cap for this run.
	Limit int `json:"limit" binding:"omitempty,gte=1,lte=2000000"`
}

// bindSyncRequest reads the optional JSON body; an empty body means "use
// configured limits".
func bindSyncRequest(c *gin.Context) (*SyncRequest, bool) {
	var req SyncRequest
	if c.Request.ContentLength == 0 {
		return &req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return nil, false
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return nil, false
	}
	return &req, true
}

// respondSyncError maps orchestrator errors onto HTTP status codes.
func respondSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyDatabase):
		apierrors.Conflict(c, services.ErrEmptyDatabase.Error())
	case errors.Is(err, services.ErrDatabaseNotEmpty):
		apierrors.Conflict(c, services.ErrDatabaseNotEmpty.Error())
	default:
		var terr *socrata.TransportError
		if errors.As(err, &terr) {
			apierrors.UpstreamError(c, "Data portal fetch failed", err)
			return
		}
		apierrors.InternalServerError(c, "Sync run failed", err)
	}
}

// Daily handles POST /api/v1/sync/daily.
func (h *SyncHandler) Daily(c *gin.Context) {
	req, ok := bindSyncRequest(c)
	if !ok {
		return
	}

	result, err := h.sync.Daily(c.Request.Context(), req.Limit)
	if err != nil {
		respondSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Backfill handles POST /api/v1/sync/backfill.
func (h *SyncHandler) Backfill(c *gin.Context) {
	req, ok := bindSyncRequest(c)
	if !ok {
		return
	}

	result, err := h.sync.Backfill(c.Request.Context(), req.Limit)
	if err != nil {
		respondSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Dimensions handles POST /api/v1/sync/dimensions.
func (h *SyncHandler) Dimensions(c *gin.Context) {
	req, ok := bindSyncRequest(c)
	if !ok {
		return
	}

	result, err := h.dimensions.Reconcile(c.Request.Context(), req.Limit)
	if err != nil {
		respondSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to read sync status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

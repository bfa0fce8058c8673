package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/janseva/work-tracker-api/internal/service"
	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
	"github.com/janseva/work-tracker-api/pkg/response"
)

// DashboardHandler serves the dashboard summary endpoints.
type DashboardHandler struct {
	service       *service.WorkRecordService
	recentEntries int
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(svc *service.WorkRecordService, recentEntries int) *DashboardHandler {
	return &DashboardHandler{service: svc, recentEntries: recentEntries}
}

// Stats godoc
// @Summary Work record statistics
// @Description Aggregate counters for the dashboard; failed counters are zero-filled and named in failed
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Recent godoc
// @Summary Recent work records
// @Description Latest non-draft entries for the dashboard
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Number of entries"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard/recent [get]
func (h *DashboardHandler) Recent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	limit := h.recentEntries
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.service.Recent(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

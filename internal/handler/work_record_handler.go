package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janseva/work-tracker-api/internal/models"
	"github.com/janseva/work-tracker-api/internal/service"
	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
	"github.com/janseva/work-tracker-api/pkg/response"
)

// WorkRecordHandler wires HTTP endpoints to the work-record store.
type WorkRecordHandler struct {
	service *service.WorkRecordService
	exports *service.ExportService
	metrics *service.MetricsService
}

// NewWorkRecordHandler creates a new handler.
func NewWorkRecordHandler(svc *service.WorkRecordService, exports *service.ExportService, metrics *service.MetricsService) *WorkRecordHandler {
	return &WorkRecordHandler{service: svc, exports: exports, metrics: metrics}
}

// Create godoc
// @Summary Create work record
// @Description Register a new citizen request with optional referrers
// @Tags WorkRecords
// @Accept json
// @Produce json
// @Param payload body service.CreateWorkRecordRequest true "Work record payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /work-records [post]
func (h *WorkRecordHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.CreateWorkRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid work record payload"))
		return
	}

	result, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.IncRecordCreated()
	response.Created(c, result)
}

// List godoc
// @Summary List work records
// @Description List work records newest first with optional filters
// @Tags WorkRecords
// @Produce json
// @Param search query string false "Substring match on name or phone"
// @Param date_from query string false "Entry date lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Entry date upper bound (YYYY-MM-DD)"
// @Param constituency_origin query string false "Constituency of origin"
// @Param constituency_work query string false "Constituency of work"
// @Param nature_of_work query string false "Nature of work, or all"
// @Param status query string false "Status, or all"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /work-records [get]
func (h *WorkRecordHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.service.List(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{"count": len(records)})
}

// Get godoc
// @Summary Get work record
// @Description Fetch a single work record with its referrers
// @Tags WorkRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /work-records/{id} [get]
func (h *WorkRecordHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	record, err := h.service.GetByID(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Update godoc
// @Summary Update work record
// @Description Apply a partial update to an existing work record
// @Tags WorkRecords
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.UpdateWorkRecordRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /work-records/{id} [put]
func (h *WorkRecordHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.UpdateWorkRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid work record payload"))
		return
	}

	record, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete work record
// @Description Permanently remove a work record and its referrers
// @Tags WorkRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /work-records/{id} [delete]
func (h *WorkRecordHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export work records
// @Description Download filtered work records as CSV or PDF
// @Tags WorkRecords
// @Produce text/csv
// @Param format query string false "csv or pdf (default csv)"
// @Param search query string false "Substring match on name or phone"
// @Param date_from query string false "Entry date lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Entry date upper bound (YYYY-MM-DD)"
// @Param constituency_origin query string false "Constituency of origin"
// @Param constituency_work query string false "Constituency of work"
// @Param nature_of_work query string false "Nature of work, or all"
// @Param status query string false "Status, or all"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /work-records/export [get]
func (h *WorkRecordHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatCSV)))
	result, err := h.exports.Generate(c.Request.Context(), claims.UserID, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.IncExport(string(format))
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func filterFromQuery(c *gin.Context) (models.WorkRecordFilter, error) {
	filter := models.WorkRecordFilter{
		Search:             c.Query("search"),
		ConstituencyOrigin: c.Query("constituency_origin"),
		ConstituencyWork:   c.Query("constituency_work"),
		NatureOfWork:       c.Query("nature_of_work"),
		Status:             c.Query("status"),
	}
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_from, expected YYYY-MM-DD")
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_to, expected YYYY-MM-DD")
		}
		filter.DateTo = &parsed
	}
	return filter, nil
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
	"github.com/janseva/work-tracker-api/pkg/response"
)

func TestWorkRecordHandlerListRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWorkRecordHandler(nil, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/work-records", nil)
	c.Request = req

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, envelope.Error.Code)
}

func TestFilterFromQueryParsesDates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet,
		"/work-records?search=ramesh&date_from=2025-01-01&date_to=2025-01-31&nature_of_work=all&status=done&constituency_origin=North", nil)
	c.Request = req

	filter, err := filterFromQuery(c)
	require.NoError(t, err)
	assert.Equal(t, "ramesh", filter.Search)
	assert.Equal(t, "North", filter.ConstituencyOrigin)
	assert.Equal(t, "all", filter.NatureOfWork)
	assert.Equal(t, "done", filter.Status)
	require.NotNil(t, filter.DateFrom)
	require.NotNil(t, filter.DateTo)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *filter.DateFrom)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), *filter.DateTo)
}

func TestFilterFromQueryRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/work-records?date_from=31-01-2025", nil)
	c.Request = req

	_, err := filterFromQuery(c)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDashboardHandlerStatsRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(nil, 5)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	c.Request = req

	handler.Stats(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

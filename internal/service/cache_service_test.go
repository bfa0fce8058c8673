package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/janseva/work-tracker-api/internal/models"
)

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	repo := &mockStatsCache{}
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)

	var out models.WorkRecordStats
	hit, err := svc.Get(context.Background(), "stats:summary", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
	assert.Zero(t, testutil.ToFloat64(metrics.cacheHits))

	repo.getHit = &models.WorkRecordStats{Total: 7}
	hit, err = svc.Get(context.Background(), "stats:summary", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, out.Total)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
}

func TestCacheServiceDisabledIsNoOp(t *testing.T) {
	var svc *CacheService

	hit, err := svc.Get(context.Background(), "stats:summary", nil)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Set(context.Background(), "stats:summary", 1, time.Minute))
	require.NoError(t, svc.Invalidate(context.Background(), "stats:*"))
}

func TestWorkRecordServiceStatsTimesQueries(t *testing.T) {
	metrics := NewMetricsService()
	repo := &mockWorkRecordRepo{countAll: 3}
	svc := NewWorkRecordService(repo, activeStaff(), nil, metrics, validator.New(), zap.NewNop(), time.Minute)

	_, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)

	// One timing series per stats counter.
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.dbQueryDuration))
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/janseva/work-tracker-api/internal/models"
	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
)

type mockWorkRecordRepo struct {
	records       map[string]models.WorkRecordDetail
	lastFilter    models.WorkRecordFilter
	createCalls   int
	deleteCalls   int
	referrerCalls int
	referrerErr   error
	listErr       error
	createErr     error

	countAll         int
	countAllErr      error
	countsByStatus   map[models.WorkStatus]int
	countByStatusErr map[models.WorkStatus]error
	countSince       int
	countSinceErr    error
	sinceArg         time.Time
}

func (m *mockWorkRecordRepo) Create(ctx context.Context, record *models.WorkRecord) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if record.ID == "" {
		record.ID = "generated"
	}
	if m.records == nil {
		m.records = make(map[string]models.WorkRecordDetail)
	}
	m.records[record.ID] = models.WorkRecordDetail{WorkRecord: *record}
	return nil
}

func (m *mockWorkRecordRepo) InsertReferrers(ctx context.Context, recordID string, referrers []models.Referrer) error {
	m.referrerCalls++
	return m.referrerErr
}

func (m *mockWorkRecordRepo) List(ctx context.Context, filter models.WorkRecordFilter) ([]models.WorkRecordDetail, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	details := make([]models.WorkRecordDetail, 0, len(m.records))
	for _, d := range m.records {
		details = append(details, d)
	}
	return details, nil
}

func (m *mockWorkRecordRepo) FindByID(ctx context.Context, id string) (*models.WorkRecordDetail, error) {
	if d, ok := m.records[id]; ok {
		detail := d
		return &detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockWorkRecordRepo) Update(ctx context.Context, record *models.WorkRecord) error {
	if m.records == nil {
		m.records = make(map[string]models.WorkRecordDetail)
	}
	existing := m.records[record.ID]
	existing.WorkRecord = *record
	m.records[record.ID] = existing
	return nil
}

func (m *mockWorkRecordRepo) Delete(ctx context.Context, id string) error {
	m.deleteCalls++
	delete(m.records, id)
	return nil
}

func (m *mockWorkRecordRepo) CountAll(ctx context.Context) (int, error) {
	return m.countAll, m.countAllErr
}

func (m *mockWorkRecordRepo) CountByStatus(ctx context.Context, status models.WorkStatus) (int, error) {
	if err, ok := m.countByStatusErr[status]; ok && err != nil {
		return 0, err
	}
	return m.countsByStatus[status], nil
}

func (m *mockWorkRecordRepo) CountEnteredSince(ctx context.Context, date time.Time) (int, error) {
	m.sinceArg = date
	return m.countSince, m.countSinceErr
}

func (m *mockWorkRecordRepo) Recent(ctx context.Context, limit int) ([]models.WorkRecord, error) {
	records := make([]models.WorkRecord, 0, len(m.records))
	for _, d := range m.records {
		if !d.IsDraft {
			records = append(records, d.WorkRecord)
		}
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

type mockActorResolver struct {
	users map[string]models.User
	calls int
	err   error
}

func (m *mockActorResolver) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		user := u
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

type mockStatsCache struct {
	getHit  *models.WorkRecordStats
	sets    int
	deletes int
}

func (m *mockStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getHit == nil {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*models.WorkRecordStats)) = *m.getHit
	return nil
}

func (m *mockStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	return nil
}

func (m *mockStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes++
	return nil
}

func activeStaff() *mockActorResolver {
	return &mockActorResolver{users: map[string]models.User{
		"user-1": {ID: "user-1", Email: "staff@example.com", Role: models.RoleStaff, Active: true},
	}}
}

func newWorkRecordService(repo *mockWorkRecordRepo, actors *mockActorResolver, cache CacheRepository) *WorkRecordService {
	var cacheSvc *CacheService
	if cache != nil {
		cacheSvc = NewCacheService(cache, nil, time.Minute, zap.NewNop(), true)
	}
	return NewWorkRecordService(repo, actors, cacheSvc, nil, validator.New(), zap.NewNop(), time.Minute)
}

func validCreateRequest() CreateWorkRecordRequest {
	return CreateWorkRecordRequest{
		FullName:           "Ramesh Kumar",
		PhoneNumber:        "9876543210",
		PlaceAddress:       "12 Gandhi Road",
		VillageCity:        "Rampur",
		ConstituencyOrigin: "North",
		ConstituencyWork:   "North",
		NatureOfWork:       string(models.NatureDevelopment),
	}
}

func TestWorkRecordServiceCreateRequiresAuth(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	_, err := svc.Create(context.Background(), "", validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErr.Code)
	assert.Zero(t, repo.createCalls)
}

func TestWorkRecordServiceCreateRejectsUnknownActor(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	_, err := svc.Create(context.Background(), "ghost", validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErr.Code)
	assert.Zero(t, repo.createCalls)
}

func TestWorkRecordServiceCreateRejectsInactiveActor(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	actors := &mockActorResolver{users: map[string]models.User{
		"user-1": {ID: "user-1", Active: false},
	}}
	svc := newWorkRecordService(repo, actors, nil)

	_, err := svc.Create(context.Background(), "user-1", validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErr.Code)
	assert.Zero(t, repo.createCalls)
}

func TestWorkRecordServiceCreateAppliesDefaults(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 18, 30, 0, 0, time.UTC) }

	result, err := svc.Create(context.Background(), "user-1", validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, result.Record.Status)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), result.Record.DateOfEntry)
	assert.Equal(t, "user-1", result.Record.CreatedBy)
	assert.Nil(t, result.Record.UpdatedBy)
}

func TestWorkRecordServiceCreateValidation(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	req := validCreateRequest()
	req.NatureOfWork = "gardening"
	_, err := svc.Create(context.Background(), "user-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Zero(t, repo.createCalls)
}

func TestWorkRecordServiceCreateFiltersBlankReferrers(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	req := validCreateRequest()
	req.ReferredBy = []ReferrerInput{
		{Name: "  "},
		{Name: ""},
	}
	result, err := svc.Create(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Zero(t, repo.referrerCalls)
	assert.Zero(t, result.ReferrersInserted)
	assert.Empty(t, result.ReferrerError)
}

func TestWorkRecordServiceCreateAbsorbsReferrerFailure(t *testing.T) {
	repo := &mockWorkRecordRepo{referrerErr: errors.New("insert failed")}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	req := validCreateRequest()
	req.ReferredBy = []ReferrerInput{{Name: "Suresh", Contact: "111"}}
	result, err := svc.Create(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.createCalls)
	assert.NotEmpty(t, result.ReferrerError)
	assert.Zero(t, result.ReferrersInserted)
	assert.NotEmpty(t, result.Record.ID)
}

func TestWorkRecordServiceCreatePersistenceFailure(t *testing.T) {
	repo := &mockWorkRecordRepo{createErr: errors.New("db down")}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	_, err := svc.Create(context.Background(), "user-1", validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErr.Code)
}

func TestWorkRecordServiceListPassesFilter(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	filter := models.WorkRecordFilter{Search: "ramesh", Status: models.FilterAll}
	_, err := svc.List(context.Background(), "user-1", filter)
	require.NoError(t, err)
	assert.Equal(t, filter, repo.lastFilter)
}

func TestWorkRecordServiceGetRejectsMalformedID(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	_, err := svc.GetByID(context.Background(), "user-1", "not-a-uuid")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestWorkRecordServiceGetNotFound(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	_, err := svc.GetByID(context.Background(), "user-1", "6f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestWorkRecordServiceGetRepeatedReadsMatch(t *testing.T) {
	recordID := "6f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8"
	repo := &mockWorkRecordRepo{records: map[string]models.WorkRecordDetail{
		recordID: {WorkRecord: models.WorkRecord{
			ID:       recordID,
			FullName: "Ramesh Kumar",
			Status:   models.StatusInProgress,
		}},
	}}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	first, err := svc.GetByID(context.Background(), "user-1", recordID)
	require.NoError(t, err)
	second, err := svc.GetByID(context.Background(), "user-1", recordID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWorkRecordServiceUpdatePartialFields(t *testing.T) {
	recordID := "6f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8"
	repo := &mockWorkRecordRepo{records: map[string]models.WorkRecordDetail{
		recordID: {WorkRecord: models.WorkRecord{
			ID:          recordID,
			FullName:    "Ramesh Kumar",
			PhoneNumber: "9876543210",
			Status:      models.StatusInProgress,
			CreatedBy:   "user-1",
		}},
	}}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	status := string(models.StatusDone)
	updated, err := svc.Update(context.Background(), "user-1", recordID, UpdateWorkRecordRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.Equal(t, "Ramesh Kumar", updated.FullName)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "user-1", *updated.UpdatedBy)
}

func TestWorkRecordServiceDelete(t *testing.T) {
	recordID := "6f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8"
	repo := &mockWorkRecordRepo{records: map[string]models.WorkRecordDetail{
		recordID: {WorkRecord: models.WorkRecord{ID: recordID}},
	}}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	require.NoError(t, svc.Delete(context.Background(), "user-1", recordID))
	assert.Equal(t, 1, repo.deleteCalls)

	err := svc.Delete(context.Background(), "user-1", recordID)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestWorkRecordServiceStats(t *testing.T) {
	repo := &mockWorkRecordRepo{
		countAll: 40,
		countsByStatus: map[models.WorkStatus]int{
			models.StatusInProgress: 12,
			models.StatusDone:       25,
		},
		countSince: 6,
	}
	svc := newWorkRecordService(repo, activeStaff(), nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 18, 30, 0, 0, time.UTC) }

	stats, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 40, stats.Total)
	assert.Equal(t, 12, stats.Pending)
	assert.Equal(t, 25, stats.Completed)
	assert.Equal(t, 6, stats.ThisMonth)
	assert.Empty(t, stats.Failed)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), repo.sinceArg)
}

func TestWorkRecordServiceStatsEmptyStore(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	stats, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Completed)
	assert.Zero(t, stats.ThisMonth)
	assert.Empty(t, stats.Failed)
}

func TestWorkRecordServiceStatsZeroFillsFailures(t *testing.T) {
	repo := &mockWorkRecordRepo{
		countAll:    40,
		countAllErr: errors.New("timeout"),
		countsByStatus: map[models.WorkStatus]int{
			models.StatusInProgress: 12,
			models.StatusDone:       25,
		},
		countSinceErr: errors.New("timeout"),
	}
	svc := newWorkRecordService(repo, activeStaff(), nil)

	stats, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.ThisMonth)
	assert.Equal(t, 12, stats.Pending)
	assert.Equal(t, 25, stats.Completed)
	assert.ElementsMatch(t, []string{models.StatTotal, models.StatThisMonth}, stats.Failed)
}

func TestWorkRecordServiceStatsCaching(t *testing.T) {
	repo := &mockWorkRecordRepo{countAll: 40}
	cache := &mockStatsCache{}
	svc := newWorkRecordService(repo, activeStaff(), cache)

	_, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	cache.getHit = &models.WorkRecordStats{Total: 99}
	stats, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 99, stats.Total)
	assert.Equal(t, 1, cache.sets)
}

func TestWorkRecordServiceStatsPartialFailureNotCached(t *testing.T) {
	repo := &mockWorkRecordRepo{countAllErr: errors.New("timeout")}
	cache := &mockStatsCache{}
	svc := newWorkRecordService(repo, activeStaff(), cache)

	stats, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, stats.Failed)
	assert.Zero(t, cache.sets)
}

func TestWorkRecordServiceCreateInvalidatesStatsCache(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	cache := &mockStatsCache{}
	svc := newWorkRecordService(repo, activeStaff(), cache)

	_, err := svc.Create(context.Background(), "user-1", validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)
}

func TestWorkRecordServiceActorTransportFailure(t *testing.T) {
	repo := &mockWorkRecordRepo{}
	actors := &mockActorResolver{err: errors.New("connection refused")}
	svc := newWorkRecordService(repo, actors, nil)

	_, err := svc.List(context.Background(), "user-1", models.WorkRecordFilter{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTransport.Code, appErr.Code)
}

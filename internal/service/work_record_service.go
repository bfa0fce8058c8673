package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/janseva/work-tracker-api/internal/models"
	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
)

const (
	statsCacheKey     = "stats:summary"
	statsCachePattern = "stats:*"
)

type workRecordRepository interface {
	Create(ctx context.Context, record *models.WorkRecord) error
	InsertReferrers(ctx context.Context, recordID string, referrers []models.Referrer) error
	List(ctx context.Context, filter models.WorkRecordFilter) ([]models.WorkRecordDetail, error)
	FindByID(ctx context.Context, id string) (*models.WorkRecordDetail, error)
	Update(ctx context.Context, record *models.WorkRecord) error
	Delete(ctx context.Context, id string) error
	CountAll(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.WorkStatus) (int, error)
	CountEnteredSince(ctx context.Context, date time.Time) (int, error)
	Recent(ctx context.Context, limit int) ([]models.WorkRecord, error)
}

type actorResolver interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ReferrerInput names a person who referred the request. Entries with a
// blank name are discarded before persistence.
type ReferrerInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// CreateWorkRecordRequest is the payload for registering a citizen request.
type CreateWorkRecordRequest struct {
	FullName               string          `json:"full_name" validate:"required"`
	PhoneNumber            string          `json:"phone_number" validate:"required"`
	PlaceAddress           string          `json:"place_address" validate:"required"`
	VillageCity            string          `json:"village_city" validate:"required"`
	ConstituencyOrigin     string          `json:"constituency_origin" validate:"required"`
	ConstituencyWork       string          `json:"constituency_work" validate:"required"`
	NatureOfWork           string          `json:"nature_of_work" validate:"required,oneof=development jan_kalyan transfers_employment other"`
	NatureOfWorkDetails    *string         `json:"nature_of_work_details"`
	ActionTaken            *string         `json:"action_taken"`
	ConcernedPersonContact *string         `json:"concerned_person_contact"`
	WorkAllocatedTo        *string         `json:"work_allocated_to"`
	Status                 string          `json:"status" validate:"omitempty,oneof=done in_progress incomplete"`
	DateOfEntry            string          `json:"date_of_entry" validate:"omitempty,datetime=2006-01-02"`
	IsDraft                bool            `json:"is_draft"`
	ReferredBy             []ReferrerInput `json:"referred_by"`
}

// UpdateWorkRecordRequest carries a partial update. Nil fields are left
// untouched on the stored record.
type UpdateWorkRecordRequest struct {
	FullName               *string `json:"full_name" validate:"omitempty,min=1"`
	PhoneNumber            *string `json:"phone_number" validate:"omitempty,min=1"`
	PlaceAddress           *string `json:"place_address"`
	VillageCity            *string `json:"village_city"`
	ConstituencyOrigin     *string `json:"constituency_origin"`
	ConstituencyWork       *string `json:"constituency_work"`
	NatureOfWork           *string `json:"nature_of_work" validate:"omitempty,oneof=development jan_kalyan transfers_employment other"`
	NatureOfWorkDetails    *string `json:"nature_of_work_details"`
	ActionTaken            *string `json:"action_taken"`
	ConcernedPersonContact *string `json:"concerned_person_contact"`
	WorkAllocatedTo        *string `json:"work_allocated_to"`
	Status                 *string `json:"status" validate:"omitempty,oneof=done in_progress incomplete"`
	DateOfEntry            *string `json:"date_of_entry" validate:"omitempty,datetime=2006-01-02"`
	IsDraft                *bool   `json:"is_draft"`
}

// WorkRecordService implements the work-record store. Every operation
// re-resolves the acting user before touching record data.
type WorkRecordService struct {
	repo          workRecordRepository
	actors        actorResolver
	cache         *CacheService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	statsCacheTTL time.Duration
	now           func() time.Time
}

// NewWorkRecordService constructs a WorkRecordService. The cache and
// metrics services are optional; nil disables them.
func NewWorkRecordService(repo workRecordRepository, actors actorResolver, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, statsCacheTTL time.Duration) *WorkRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkRecordService{
		repo:          repo,
		actors:        actors,
		cache:         cache,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		statsCacheTTL: statsCacheTTL,
		now:           time.Now,
	}
}

// requireActor resolves the acting user against the user store. Every
// store operation calls this before any record access, so a deactivated
// or deleted account is cut off immediately regardless of token state.
func (s *WorkRecordService) requireActor(ctx context.Context, actorID string) (*models.User, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "user not authenticated")
	}
	actor, err := s.actors.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "user not authenticated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "failed to verify authentication")
	}
	if !actor.Active {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "account is inactive")
	}
	return actor, nil
}

// Create persists a new work record. Referrer rows are inserted
// best-effort after the record itself; a referrer failure never rolls
// back the record and is reported on the result instead.
func (s *WorkRecordService) Create(ctx context.Context, actorID string, req CreateWorkRecordRequest) (*models.WorkRecordCreateResult, error) {
	actor, err := s.requireActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work record payload")
	}

	status := models.WorkStatus(req.Status)
	if status == "" {
		status = models.StatusInProgress
	}
	dateOfEntry := s.today()
	if req.DateOfEntry != "" {
		dateOfEntry, _ = time.Parse("2006-01-02", req.DateOfEntry)
	}

	record := &models.WorkRecord{
		FullName:               req.FullName,
		PhoneNumber:            req.PhoneNumber,
		PlaceAddress:           req.PlaceAddress,
		VillageCity:            req.VillageCity,
		ConstituencyOrigin:     req.ConstituencyOrigin,
		ConstituencyWork:       req.ConstituencyWork,
		NatureOfWork:           models.NatureOfWork(req.NatureOfWork),
		NatureOfWorkDetails:    req.NatureOfWorkDetails,
		ActionTaken:            req.ActionTaken,
		ConcernedPersonContact: req.ConcernedPersonContact,
		WorkAllocatedTo:        req.WorkAllocatedTo,
		Status:                 status,
		DateOfEntry:            dateOfEntry,
		IsDraft:                req.IsDraft,
		CreatedBy:              actor.ID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create work record")
	}

	result := &models.WorkRecordCreateResult{Record: *record}
	referrers := filterReferrers(req.ReferredBy)
	if len(referrers) > 0 {
		if err := s.repo.InsertReferrers(ctx, record.ID, referrers); err != nil {
			s.logger.Warn("failed to insert referrers",
				zap.String("work_record_id", record.ID),
				zap.Error(err))
			result.ReferrerError = "failed to save referrer entries"
		} else {
			result.ReferrersInserted = len(referrers)
		}
	}

	s.invalidateStats(ctx)
	return result, nil
}

// List returns all matching records, newest first, with referrers attached.
func (s *WorkRecordService) List(ctx context.Context, actorID string, filter models.WorkRecordFilter) ([]models.WorkRecordDetail, error) {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	start := time.Now()
	records, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("work_records_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "failed to list work records")
	}
	return records, nil
}

// GetByID fetches a single record with its referrers.
func (s *WorkRecordService) GetByID(ctx context.Context, actorID, id string) (*models.WorkRecordDetail, error) {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "failed to fetch work record")
	}
	return record, nil
}

// Update applies the non-nil fields of req to the stored record and
// stamps the acting user as the last editor.
func (s *WorkRecordService) Update(ctx context.Context, actorID, id string, req UpdateWorkRecordRequest) (*models.WorkRecordDetail, error) {
	actor, err := s.requireActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work record payload")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "failed to fetch work record")
	}

	record := detail.WorkRecord
	applyUpdate(&record, req)
	record.UpdatedBy = &actor.ID

	if err := s.repo.Update(ctx, &record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update work record")
	}

	s.invalidateStats(ctx)
	return &models.WorkRecordDetail{WorkRecord: record, ReferredBy: detail.ReferredBy}, nil
}

// Delete removes a record permanently. Referrer rows go with it.
func (s *WorkRecordService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return err
	}
	if err := validateRecordID(id); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "work record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "failed to fetch work record")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete work record")
	}
	s.invalidateStats(ctx)
	return nil
}

// Stats computes the dashboard counters. The four counts run
// independently; a failing counter is reported as zero and named in
// Failed rather than failing the whole call.
func (s *WorkRecordService) Stats(ctx context.Context, actorID string) (*models.WorkRecordStats, error) {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var cached models.WorkRecordStats
	if hit, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	stats := &models.WorkRecordStats{}
	start := time.Now()
	if n, err := s.repo.CountAll(ctx); err != nil {
		s.logger.Warn("stats query failed", zap.String("stat", models.StatTotal), zap.Error(err))
		stats.Failed = append(stats.Failed, models.StatTotal)
	} else {
		stats.Total = n
	}
	s.metrics.ObserveDBQuery("stats_total", time.Since(start))

	start = time.Now()
	if n, err := s.repo.CountByStatus(ctx, models.StatusInProgress); err != nil {
		s.logger.Warn("stats query failed", zap.String("stat", models.StatPending), zap.Error(err))
		stats.Failed = append(stats.Failed, models.StatPending)
	} else {
		stats.Pending = n
	}
	s.metrics.ObserveDBQuery("stats_pending", time.Since(start))

	start = time.Now()
	if n, err := s.repo.CountByStatus(ctx, models.StatusDone); err != nil {
		s.logger.Warn("stats query failed", zap.String("stat", models.StatCompleted), zap.Error(err))
		stats.Failed = append(stats.Failed, models.StatCompleted)
	} else {
		stats.Completed = n
	}
	s.metrics.ObserveDBQuery("stats_completed", time.Since(start))

	start = time.Now()
	if n, err := s.repo.CountEnteredSince(ctx, s.firstOfMonth()); err != nil {
		s.logger.Warn("stats query failed", zap.String("stat", models.StatThisMonth), zap.Error(err))
		stats.Failed = append(stats.Failed, models.StatThisMonth)
	} else {
		stats.ThisMonth = n
	}
	s.metrics.ObserveDBQuery("stats_this_month", time.Since(start))

	// Only fully successful snapshots are cached.
	if len(stats.Failed) == 0 {
		_ = s.cache.Set(ctx, statsCacheKey, stats, s.statsCacheTTL)
	}
	return stats, nil
}

// Recent returns the latest non-draft entries for the dashboard.
func (s *WorkRecordService) Recent(ctx context.Context, actorID string, limit int) ([]models.WorkRecord, error) {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	records, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "failed to fetch recent work records")
	}
	return records, nil
}

func (s *WorkRecordService) invalidateStats(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, statsCachePattern)
}

func (s *WorkRecordService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *WorkRecordService) firstOfMonth() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// validateRecordID rejects identifiers that cannot be a UUID before any
// query runs. Parsing accepts mixed case and the unhyphenated form.
func validateRecordID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid work record id")
	}
	return nil
}

func filterReferrers(inputs []ReferrerInput) []models.Referrer {
	referrers := make([]models.Referrer, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		ref := models.Referrer{ReferrerName: name}
		if contact := strings.TrimSpace(in.Contact); contact != "" {
			ref.ReferrerContact = &contact
		}
		referrers = append(referrers, ref)
	}
	return referrers
}

func applyUpdate(record *models.WorkRecord, req UpdateWorkRecordRequest) {
	if req.FullName != nil {
		record.FullName = *req.FullName
	}
	if req.PhoneNumber != nil {
		record.PhoneNumber = *req.PhoneNumber
	}
	if req.PlaceAddress != nil {
		record.PlaceAddress = *req.PlaceAddress
	}
	if req.VillageCity != nil {
		record.VillageCity = *req.VillageCity
	}
	if req.ConstituencyOrigin != nil {
		record.ConstituencyOrigin = *req.ConstituencyOrigin
	}
	if req.ConstituencyWork != nil {
		record.ConstituencyWork = *req.ConstituencyWork
	}
	if req.NatureOfWork != nil {
		record.NatureOfWork = models.NatureOfWork(*req.NatureOfWork)
	}
	if req.NatureOfWorkDetails != nil {
		record.NatureOfWorkDetails = req.NatureOfWorkDetails
	}
	if req.ActionTaken != nil {
		record.ActionTaken = req.ActionTaken
	}
	if req.ConcernedPersonContact != nil {
		record.ConcernedPersonContact = req.ConcernedPersonContact
	}
	if req.WorkAllocatedTo != nil {
		record.WorkAllocatedTo = req.WorkAllocatedTo
	}
	if req.Status != nil {
		record.Status = models.WorkStatus(*req.Status)
	}
	if req.DateOfEntry != nil {
		if parsed, err := time.Parse("2006-01-02", *req.DateOfEntry); err == nil {
			record.DateOfEntry = parsed
		}
	}
	if req.IsDraft != nil {
		record.IsDraft = *req.IsDraft
	}
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/janseva/work-tracker-api/internal/models"
)

const workRecordColumns = `id, full_name, phone_number, place_address, village_city, constituency_origin, constituency_work,
        nature_of_work, nature_of_work_details, action_taken, concerned_person_contact, work_allocated_to,
        status, date_of_entry, is_draft, created_by, updated_by, created_at, updated_at`

// WorkRecordRepository manages persistence for work records and their referrers.
type WorkRecordRepository struct {
	db *sqlx.DB
}

// NewWorkRecordRepository constructs a WorkRecordRepository.
func NewWorkRecordRepository(db *sqlx.DB) *WorkRecordRepository {
	return &WorkRecordRepository{db: db}
}

// Create inserts a new work record row.
func (r *WorkRecordRepository) Create(ctx context.Context, record *models.WorkRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO work_records (id, full_name, phone_number, place_address, village_city, constituency_origin, constituency_work,
        nature_of_work, nature_of_work_details, action_taken, concerned_person_contact, work_allocated_to,
        status, date_of_entry, is_draft, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :full_name, :phone_number, :place_address, :village_city, :constituency_origin, :constituency_work,
        :nature_of_work, :nature_of_work_details, :action_taken, :concerned_person_contact, :work_allocated_to,
        :status, :date_of_entry, :is_draft, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create work record: %w", err)
	}
	return nil
}

// InsertReferrers stores referrer rows keyed to their work record.
func (r *WorkRecordRepository) InsertReferrers(ctx context.Context, recordID string, referrers []models.Referrer) error {
	const query = `INSERT INTO referred_by (id, work_record_id, referrer_name, referrer_contact, is_self, created_at)
        VALUES (:id, :work_record_id, :referrer_name, :referrer_contact, :is_self, :created_at)`
	now := time.Now().UTC()
	for i := range referrers {
		referrers[i].WorkRecordID = recordID
		if referrers[i].ID == "" {
			referrers[i].ID = uuid.NewString()
		}
		if referrers[i].CreatedAt.IsZero() {
			referrers[i].CreatedAt = now
		}
		if _, err := r.db.NamedExecContext(ctx, query, &referrers[i]); err != nil {
			return fmt.Errorf("insert referrer: %w", err)
		}
	}
	return nil
}

// List returns all records matching the filter, newest first, each with
// its referrers attached. Pagination is intentionally left to callers.
func (r *WorkRecordRepository) List(ctx context.Context, filter models.WorkRecordFilter) ([]models.WorkRecordDetail, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(phone_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date_of_entry >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date_of_entry <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.ConstituencyOrigin != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(constituency_origin) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.ConstituencyOrigin)+"%")
	}
	if filter.ConstituencyWork != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(constituency_work) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.ConstituencyWork)+"%")
	}
	if filter.NatureOfWork != "" && filter.NatureOfWork != models.FilterAll {
		conditions = append(conditions, fmt.Sprintf("nature_of_work = $%d", len(args)+1))
		args = append(args, filter.NatureOfWork)
	}
	if filter.Status != "" && filter.Status != models.FilterAll {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf("SELECT %s FROM work_records WHERE %s ORDER BY created_at DESC", workRecordColumns, strings.Join(conditions, " AND "))

	var records []models.WorkRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list work records: %w", err)
	}

	details := make([]models.WorkRecordDetail, len(records))
	ids := make([]string, len(records))
	for i, record := range records {
		details[i] = models.WorkRecordDetail{WorkRecord: record, ReferredBy: []models.Referrer{}}
		ids[i] = record.ID
	}
	if len(ids) == 0 {
		return details, nil
	}

	referrers, err := r.referrersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	byRecord := make(map[string][]models.Referrer, len(ids))
	for _, ref := range referrers {
		byRecord[ref.WorkRecordID] = append(byRecord[ref.WorkRecordID], ref)
	}
	for i := range details {
		if refs, ok := byRecord[details[i].ID]; ok {
			details[i].ReferredBy = refs
		}
	}
	return details, nil
}

// FindByID fetches a single record with its referrers.
func (r *WorkRecordRepository) FindByID(ctx context.Context, id string) (*models.WorkRecordDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM work_records WHERE id = $1", workRecordColumns)
	var record models.WorkRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}

	referrers, err := r.referrersFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if referrers == nil {
		referrers = []models.Referrer{}
	}
	return &models.WorkRecordDetail{WorkRecord: record, ReferredBy: referrers}, nil
}

// Update rewrites the mutable columns of a record.
func (r *WorkRecordRepository) Update(ctx context.Context, record *models.WorkRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE work_records SET full_name = :full_name, phone_number = :phone_number, place_address = :place_address,
        village_city = :village_city, constituency_origin = :constituency_origin, constituency_work = :constituency_work,
        nature_of_work = :nature_of_work, nature_of_work_details = :nature_of_work_details, action_taken = :action_taken,
        concerned_person_contact = :concerned_person_contact, work_allocated_to = :work_allocated_to, status = :status,
        date_of_entry = :date_of_entry, is_draft = :is_draft, updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update work record: %w", err)
	}
	return nil
}

// Delete removes a record. Referrers go with it via the cascading
// foreign key on referred_by.work_record_id.
func (r *WorkRecordRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM work_records WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete work record: %w", err)
	}
	return nil
}

// CountAll returns the total number of work records.
func (r *WorkRecordRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM work_records`); err != nil {
		return 0, fmt.Errorf("count work records: %w", err)
	}
	return count, nil
}

// CountByStatus counts records in the given workflow state.
func (r *WorkRecordRepository) CountByStatus(ctx context.Context, status models.WorkStatus) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM work_records WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count work records by status: %w", err)
	}
	return count, nil
}

// CountEnteredSince counts records whose date_of_entry is on or after
// the provided date.
func (r *WorkRecordRepository) CountEnteredSince(ctx context.Context, date time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM work_records WHERE date_of_entry >= $1`, date); err != nil {
		return 0, fmt.Errorf("count work records since date: %w", err)
	}
	return count, nil
}

// Recent returns the newest non-draft records for the dashboard feed.
func (r *WorkRecordRepository) Recent(ctx context.Context, limit int) ([]models.WorkRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s FROM work_records WHERE is_draft = FALSE ORDER BY created_at DESC LIMIT %d", workRecordColumns, limit)
	var records []models.WorkRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("recent work records: %w", err)
	}
	return records, nil
}

func (r *WorkRecordRepository) referrersFor(ctx context.Context, recordIDs []string) ([]models.Referrer, error) {
	query, args, err := sqlx.In(`SELECT id, work_record_id, referrer_name, referrer_contact, is_self, created_at
        FROM referred_by WHERE work_record_id IN (?) ORDER BY created_at ASC`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("build referrer query: %w", err)
	}
	query = r.db.Rebind(query)
	var referrers []models.Referrer
	if err := r.db.SelectContext(ctx, &referrers, query, args...); err != nil {
		return nil, fmt.Errorf("list referrers: %w", err)
	}
	return referrers, nil
}

package models

import "time"

// NatureOfWork classifies a work record into the closed set used by the
// constituency office.
type NatureOfWork string

const (
	NatureDevelopment         NatureOfWork = "development"
	NatureJanKalyan           NatureOfWork = "jan_kalyan"
	NatureTransfersEmployment NatureOfWork = "transfers_employment"
	NatureOther               NatureOfWork = "other"
)

// Valid reports whether the value belongs to the closed enumeration.
func (n NatureOfWork) Valid() bool {
	switch n {
	case NatureDevelopment, NatureJanKalyan, NatureTransfersEmployment, NatureOther:
		return true
	}
	return false
}

// WorkStatus tracks the workflow state of a record.
type WorkStatus string

const (
	StatusDone       WorkStatus = "done"
	StatusInProgress WorkStatus = "in_progress"
	StatusIncomplete WorkStatus = "incomplete"
)

// Valid reports whether the value belongs to the closed enumeration.
func (s WorkStatus) Valid() bool {
	switch s {
	case StatusDone, StatusInProgress, StatusIncomplete:
		return true
	}
	return false
}

// FilterAll is the literal filter value that disables an exact-match filter.
const FilterAll = "all"

// WorkRecord is one citizen request tracked by the portal.
type WorkRecord struct {
	ID                     string       `db:"id" json:"id"`
	FullName               string       `db:"full_name" json:"full_name"`
	PhoneNumber            string       `db:"phone_number" json:"phone_number"`
	PlaceAddress           string       `db:"place_address" json:"place_address"`
	VillageCity            string       `db:"village_city" json:"village_city"`
	ConstituencyOrigin     string       `db:"constituency_origin" json:"constituency_origin"`
	ConstituencyWork       string       `db:"constituency_work" json:"constituency_work"`
	NatureOfWork           NatureOfWork `db:"nature_of_work" json:"nature_of_work"`
	NatureOfWorkDetails    *string      `db:"nature_of_work_details" json:"nature_of_work_details,omitempty"`
	ActionTaken            *string      `db:"action_taken" json:"action_taken,omitempty"`
	ConcernedPersonContact *string      `db:"concerned_person_contact" json:"concerned_person_contact,omitempty"`
	WorkAllocatedTo        *string      `db:"work_allocated_to" json:"work_allocated_to,omitempty"`
	Status                 WorkStatus   `db:"status" json:"status"`
	DateOfEntry            time.Time    `db:"date_of_entry" json:"date_of_entry"`
	IsDraft                bool         `db:"is_draft" json:"is_draft"`
	CreatedBy              string       `db:"created_by" json:"created_by"`
	UpdatedBy              *string      `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt              time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time    `db:"updated_at" json:"updated_at"`
}

// Referrer credits a person with referring a work record. Referrers are
// owned by their record and deleted with it.
type Referrer struct {
	ID              string    `db:"id" json:"id"`
	WorkRecordID    string    `db:"work_record_id" json:"work_record_id"`
	ReferrerName    string    `db:"referrer_name" json:"referrer_name"`
	ReferrerContact *string   `db:"referrer_contact" json:"referrer_contact,omitempty"`
	IsSelf          bool      `db:"is_self" json:"is_self"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// WorkRecordDetail is a work record joined with its referrers.
type WorkRecordDetail struct {
	WorkRecord
	ReferredBy []Referrer `json:"referred_by"`
}

// WorkRecordFilter captures the optional, AND-combined list filters.
// NatureOfWork and Status are ignored when empty or set to FilterAll.
type WorkRecordFilter struct {
	Search             string
	DateFrom           *time.Time
	DateTo             *time.Time
	ConstituencyOrigin string
	ConstituencyWork   string
	NatureOfWork       string
	Status             string
}

// Stat counter names used to tag partial failures.
const (
	StatTotal     = "total"
	StatPending   = "pending"
	StatCompleted = "completed"
	StatThisMonth = "this_month"
)

// WorkRecordStats aggregates the dashboard counters. Counters whose
// query failed are zero-filled and listed in Failed.
type WorkRecordStats struct {
	Total     int      `json:"total"`
	Pending   int      `json:"pending"`
	Completed int      `json:"completed"`
	ThisMonth int      `json:"this_month"`
	Failed    []string `json:"failed,omitempty"`
}

// WorkRecordCreateResult reports the created record together with the
// outcome of the best-effort referrer insert.
type WorkRecordCreateResult struct {
	Record            WorkRecord `json:"record"`
	ReferrersInserted int        `json:"referrers_inserted"`
	ReferrerError     string     `json:"referrer_error,omitempty"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RecordStatus is the workflow state of a dynamic record.
type RecordStatus string

const (
	StatusPending               RecordStatus = "pending"
	StatusRequestedForApproval  RecordStatus = "requestedForApproval"
	StatusRequestedForRejection RecordStatus = "requestedForRejection"
	StatusApproved              RecordStatus = "approved"
	StatusRejected              RecordStatus = "rejected"
)

// RecordData holds the author-declared fields of a record as JSONB.
type RecordData map[string]interface{}

// Value implements driver.Valuer.
func (d RecordData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *RecordData) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		*d = RecordData{}
		return nil
	default:
		return fmt.Errorf("unsupported record data source %T", src)
	}
}

// DynamicRecord is one row of a registered table: the schema-declared
// payload plus the workflow system fields.
type DynamicRecord struct {
	ID                string       `db:"id" json:"id"`
	Data              RecordData   `db:"data" json:"data"`
	Status            RecordStatus `db:"status" json:"status"`
	Submitted         bool         `db:"submitted" json:"submitted"`
	SubmittedBy       string       `db:"submitted_by" json:"submittedBy"`
	College           string       `db:"college" json:"college"`
	Department        string       `db:"department" json:"department"`
	ModeratorComment  string       `db:"moderator_comment" json:"moderatorComment"`
	SuperAdminComment string       `db:"super_admin_comment" json:"superAdminComment"`
	ReviewedModerator *string      `db:"reviewed_moderator" json:"reviewedModerator,omitempty"`
	GoAsPerModerator  bool         `db:"go_as_per_moderator" json:"goAsPerModerator"`
	Revision          int64        `db:"revision" json:"revision"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// RecordFilter captures the visibility scope composed by the caller.
// The store applies it verbatim; it performs no authorization itself.
type RecordFilter struct {
	SubmittedBy string
	Colleges    []string
	Departments []string
	Department  string
	Statuses    []RecordStatus
	Submitted   *bool
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// PageRequest carries sanitized paging inputs.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps paging inputs to the documented defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return p
}

// RecordPage is a page of records with derived paging math.
type RecordPage struct {
	Records     []DynamicRecord `json:"records"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int             `json:"totalPages"`
	TotalCount  int             `json:"totalCount"`
}

// SubmitterContext is the identity context injected into every record
// written on behalf of a submitter.
type SubmitterContext struct {
	SubmittedBy string
	College     string
	Department  string
}

package dto

import "github.com/campusdesk/report-portal-api/internal/models"

// CreateRecordRequest inserts one record into a dynamic table.
type CreateRecordRequest struct {
	TableName string            `json:"tableName" validate:"required"`
	Data      models.RecordData `json:"data" validate:"required"`
}

// RecordQuery pages through a table's records.
type RecordQuery struct {
	TableName  string `json:"tableName" validate:"required"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Status     string `json:"status,omitempty"`
	Department string `json:"department,omitempty"`
	Submitted  *bool  `json:"submitted,omitempty"`
}

// SubmitRequest flips owned pending records to submitted. An empty
// TableName means final submission across every registered table.
type SubmitRequest struct {
	TableName string `json:"tableName,omitempty"`
}

// VerifyRecordRequest carries a reviewer's status recommendation or
// decision for one record.
type VerifyRecordRequest struct {
	TableName        string `json:"tableName" validate:"required"`
	DocumentID       string `json:"documentId" validate:"required"`
	Status           string `json:"status" validate:"required"`
	Comment          string `json:"comment,omitempty"`
	GoAsPerModerator bool   `json:"goAsPerModerator,omitempty"`
}

// BulkDecisionRequest applies the moderator-recommended outcome to every
// concurred record of one department in one table.
type BulkDecisionRequest struct {
	TableName  string `json:"tableName" validate:"required"`
	Department string `json:"department" validate:"required"`
	Status     string `json:"status" validate:"required"`
	Comment    string `json:"comment,omitempty"`
}

// EditRecordRequest patches a rejected record, re-entering the pipeline.
type EditRecordRequest struct {
	TableName  string            `json:"tableName" validate:"required"`
	DocumentID string            `json:"documentId" validate:"required"`
	Data       models.RecordData `json:"data" validate:"required"`
}

// DeleteRecordRequest removes a record owned by the caller.
type DeleteRecordRequest struct {
	TableName  string `json:"tableName" validate:"required"`
	DocumentID string `json:"documentId" validate:"required"`
}

// BulkUploadResult summarizes a completed import.
type BulkUploadResult struct {
	TableName string `json:"tableName"`
	Inserted  int    `json:"inserted"`
}

// DepartmentStats aggregates submitted record outcomes, keyed by either
// the submitter or the department queried.
type DepartmentStats struct {
	UserID          string `json:"userId,omitempty"`
	Department      string `json:"department,omitempty"`
	TotalSubmission int    `json:"totalSubmission"`
	AcceptedCount   int    `json:"acceptedCount"`
	RejectedCount   int    `json:"rejectedCount"`
	PendingCount    int    `json:"pendingCount"`
}

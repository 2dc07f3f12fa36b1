package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the workflow and schema services.
const (
	AuditActionSchemaCreate   = "SCHEMA_CREATE"
	AuditActionSchemaUpdate   = "SCHEMA_UPDATE"
	AuditActionSchemaDelete   = "SCHEMA_DELETE"
	AuditActionRecordSubmit   = "RECORD_SUBMIT"
	AuditActionRecordReview   = "RECORD_REVIEW"
	AuditActionRecordDecision = "RECORD_DECISION"
	AuditActionRecordEdit     = "RECORD_EDIT"
	AuditActionRecordDelete   = "RECORD_DELETE"
	AuditActionBulkImport     = "BULK_IMPORT"
)

// AuditLog captures who did what to which resource.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string          `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

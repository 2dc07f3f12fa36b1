package models

import (
	"regexp"
	"strings"
	"time"
)

// System fields appended to every dynamic table. Authors may not
// redeclare them.
const (
	SystemFieldStatus            = "status"
	SystemFieldSubmitted         = "submitted"
	SystemFieldSubmittedBy       = "submittedBy"
	SystemFieldCollege           = "college"
	SystemFieldDepartment        = "department"
	SystemFieldModeratorComment  = "moderatorComment"
	SystemFieldSuperAdminComment = "superAdminComment"
	SystemFieldReviewedModerator = "reviewedModerator"
)

var systemFieldNames = map[string]struct{}{
	strings.ToLower(SystemFieldStatus):            {},
	strings.ToLower(SystemFieldSubmitted):         {},
	strings.ToLower(SystemFieldSubmittedBy):       {},
	strings.ToLower(SystemFieldCollege):           {},
	strings.ToLower(SystemFieldDepartment):        {},
	strings.ToLower(SystemFieldModeratorComment):  {},
	strings.ToLower(SystemFieldSuperAdminComment): {},
	strings.ToLower(SystemFieldReviewedModerator): {},
}

// IsSystemField reports whether name is reserved for the workflow
// engine. Comparison ignores case and underscores, so "submitted_by"
// collides with "submittedBy".
func IsSystemField(name string) bool {
	folded := strings.ReplaceAll(strings.ToLower(name), "_", "")
	_, ok := systemFieldNames[folded]
	return ok
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	validName     = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// NormalizeName lowers a user-supplied table or field name into the
// storage identifier form: trimmed, whitespace runs collapsed to
// underscores, lower-cased.
func NormalizeName(name string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_"))
}

// ValidName reports whether a normalized name is a safe identifier.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// TableSchema is the normalized, storage-facing descriptor of a table.
type TableSchema struct {
	ID        string    `db:"id" json:"id"`
	TableName string    `db:"table_name" json:"table_name"`
	Fields    FieldMap  `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RawTableSchema is the author-facing companion descriptor, 1:1 with a
// TableSchema and created/destroyed atomically with it.
type RawTableSchema struct {
	ID        string       `db:"id" json:"id"`
	SchemaID  string       `db:"schema_id" json:"schema_id"`
	TableName string       `db:"table_name" json:"table_name"`
	Fields    RawFieldList `db:"fields" json:"fields"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

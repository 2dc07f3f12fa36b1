package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FieldType is the author-facing vocabulary for schema fields.
type FieldType string

const (
	FieldTypeText   FieldType = "Text"
	FieldTypeNumber FieldType = "Number"
	FieldTypeEmail  FieldType = "Email"
	FieldTypeFile   FieldType = "File"
)

// StorageType is the normalized representation a field is persisted as.
type StorageType string

const (
	StorageText      StorageType = "TEXT"
	StorageNumber    StorageType = "NUMBER"
	StorageBoolean   StorageType = "BOOLEAN"
	StorageReference StorageType = "REFERENCE"
)

// Storage maps the author-facing type onto its storage representation.
// Email collapses to text; File stores the retrieval handle of the blob.
func (t FieldType) Storage() (StorageType, bool) {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypeFile:
		return StorageText, true
	case FieldTypeNumber:
		return StorageNumber, true
	default:
		return "", false
	}
}

// FieldSpec describes one normalized field of a dynamic table.
type FieldSpec struct {
	Type     StorageType `json:"type"`
	Required bool        `json:"required"`
	Unique   bool        `json:"unique"`
	Default  *string     `json:"default,omitempty"`
}

// FieldMap is the normalized field set of a table, keyed by field name.
// Stored as a JSONB column.
type FieldMap map[string]FieldSpec

// Value implements driver.Valuer.
func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *FieldMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = FieldMap{}
		return nil
	default:
		return fmt.Errorf("unsupported field map source %T", src)
	}
}

// RawFieldDescriptor preserves the author-supplied field definition,
// including UI metadata the normalized form collapses away.
type RawFieldDescriptor struct {
	FieldName     string    `json:"FieldName"`
	FieldType     FieldType `json:"FieldType"`
	FieldRequired string    `json:"FieldRequired"`
	FieldUnique   string    `json:"FieldUnique"`
	Placeholder   string    `json:"placeholder,omitempty"`
}

// RawFieldList is the ordered author-facing field set, stored as JSONB.
type RawFieldList []RawFieldDescriptor

// Value implements driver.Valuer.
func (l RawFieldList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *RawFieldList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = RawFieldList{}
		return nil
	default:
		return fmt.Errorf("unsupported raw field list source %T", src)
	}
}

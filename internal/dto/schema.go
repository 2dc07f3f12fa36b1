package dto

// FieldDescriptor is the author-facing field definition accepted on
// schema create/update. Required/Unique arrive as strings from form
// builders, matching the legacy wire contract.
type FieldDescriptor struct {
	FieldName     string `json:"FieldName" validate:"required"`
	FieldType     string `json:"FieldType" validate:"required,oneof=Text Number Email File"`
	FieldRequired string `json:"FieldRequired" validate:"omitempty,oneof=true false True False"`
	FieldUnique   string `json:"FieldUnique" validate:"omitempty,oneof=true false True False"`
	Placeholder   string `json:"placeholder"`
}

// CreateSchemaRequest registers a new dynamic table.
type CreateSchemaRequest struct {
	TableName string            `json:"tableName" validate:"required"`
	Data      []FieldDescriptor `json:"data" validate:"required,min=1,dive"`
}

// UpdateSchemaRequest re-derives an existing table's descriptors,
// optionally renaming the table.
type UpdateSchemaRequest struct {
	TableName string            `json:"tableName" validate:"required"`
	Data      []FieldDescriptor `json:"data" validate:"required,min=1,dive"`
}

// CreateSchemaResponse returns the normalized name a table was
// registered under.
type CreateSchemaResponse struct {
	TableName string `json:"tableName"`
	SchemaID  string `json:"schemaId"`
}

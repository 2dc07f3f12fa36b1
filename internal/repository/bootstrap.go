package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// coreTableDefinitions covers the fixed collections: the schema store
// pair, the timeline singleton and the audit trail. Dynamic collections
// are provisioned per schema by RecordRepository.CreateTable.
var coreTableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS table_schemas (
		id UUID PRIMARY KEY,
		table_name TEXT UNIQUE NOT NULL,
		fields JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS raw_table_schemas (
		id UUID PRIMARY KEY,
		schema_id UUID NOT NULL REFERENCES table_schemas(id) ON DELETE CASCADE,
		table_name TEXT NOT NULL,
		fields JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS timelines (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		new_values JSONB,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureCoreTables provisions the fixed collections at startup.
func EnsureCoreTables(ctx context.Context, db *sqlx.DB) error {
	for _, definition := range coreTableDefinitions {
		if _, err := db.ExecContext(ctx, definition); err != nil {
			return fmt.Errorf("ensure core tables: %w", err)
		}
	}
	return nil
}

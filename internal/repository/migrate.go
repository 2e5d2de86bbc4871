package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

const createRunsPostgres = `CREATE TABLE IF NOT EXISTS invoice_runs (
	id                UUID PRIMARY KEY,
	filename          TEXT NOT NULL,
	sha256            TEXT NOT NULL,
	status            TEXT NOT NULL,
	vendor_name       TEXT,
	invoice_number    TEXT,
	total_amount      TEXT,
	currency          TEXT,
	category_status   TEXT,
	assigned_category TEXT,
	bill_id           TEXT,
	error_stage       TEXT,
	error_message     TEXT,
	extracted_json    TEXT,
	created_at        TEXT NOT NULL,
	finished_at       TEXT
)`

const createRunsSQLite = `CREATE TABLE IF NOT EXISTS invoice_runs (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	sha256            TEXT NOT NULL,
	status            TEXT NOT NULL,
	vendor_name       TEXT,
	invoice_number    TEXT,
	total_amount      TEXT,
	currency          TEXT,
	category_status   TEXT,
	assigned_category TEXT,
	bill_id           TEXT,
	error_stage       TEXT,
	error_message     TEXT,
	extracted_json    TEXT,
	created_at        TEXT NOT NULL,
	finished_at       TEXT
)`

const createRunsIndex = `CREATE INDEX IF NOT EXISTS invoice_runs_status_created_idx ON invoice_runs (status, created_at)`

// Migrate creates the schema when missing. It is safe to run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	ddl := createRunsSQLite
	if d.Dialect() == dialect.Postgres {
		ddl = createRunsPostgres
	}
	for _, stmt := range []string{ddl, createRunsIndex} {
		if _, err := d.SQL().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate invoice_runs: %w", err)
		}
	}
	d.log.Info("db.migrate.ok", "dialect", d.Dialect())
	return nil
}

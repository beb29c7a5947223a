package migration

import (
	"context"

	"adamstat/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations.
// Statements stick to SQL shared by postgres and sqlite.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order; every step is idempotent
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create ttest_runs table", err)
	}

	if err := r.createRecordsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create adam_records table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ttest_runs (
			id VARCHAR(36) PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			subject_id VARCHAR(100) NOT NULL,
			column_name VARCHAR(255) NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			dropped INTEGER NOT NULL DEFAULT 0,
			n INTEGER NOT NULL,
			reference_mean DOUBLE PRECISION NOT NULL,
			alpha DOUBLE PRECISION NOT NULL,
			sidedness INTEGER NOT NULL,
			p_value DOUBLE PRECISION NOT NULL,
			result_json TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRecordsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS adam_records (
			run_id VARCHAR(36) NOT NULL REFERENCES ttest_runs(id) ON DELETE CASCADE,
			usubjid VARCHAR(100) NOT NULL,
			paramcd VARCHAR(8) NOT NULL,
			param VARCHAR(200) NOT NULL,
			aval DOUBLE PRECISION NOT NULL,
			avalc VARCHAR(200) NOT NULL,
			adt VARCHAR(10) NOT NULL,
			aseq INTEGER NOT NULL,
			anl01fl VARCHAR(1) NOT NULL,
			PRIMARY KEY (run_id, aseq)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_ttest_runs_created_at ON ttest_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ttest_runs_subject ON ttest_runs(subject_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"adamstat/domain/adam"
	"adamstat/domain/core"
	"adamstat/domain/run"
	"adamstat/internal/errors"
	"adamstat/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository over sqlx
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository; queries are rebound for the db's driver
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	run.Summary
	Source     string `db:"source"`
	Dropped    int    `db:"dropped"`
	ResultJSON string `db:"result_json"`
}

type recordRow struct {
	RunID string `db:"run_id"`
	adam.ResultRecord
}

// Save stores the run and its records in one transaction
func (r *RunRepositoryImpl) Save(ctx context.Context, rn *run.Run) error {
	resultJSON, err := json.Marshal(rn.Result)
	if err != nil {
		return errors.Wrap(err, "failed to encode test result")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	s := rn.Summarize()
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO ttest_runs (id, created_at, subject_id, column_name, source, dropped, n, reference_mean, alpha, sidedness, p_value, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), s.ID.String(), s.CreatedAt.UTC(), s.SubjectID, s.Column, rn.Source, rn.Dropped, s.N,
		s.ReferenceMean, s.Alpha, int(s.Sidedness), s.PValue, string(resultJSON))
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to insert run %s", rn.ID), err)
	}

	for _, rec := range rn.Records {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO adam_records (run_id, usubjid, paramcd, param, aval, avalc, adt, aseq, anl01fl)
			VALUES (:run_id, :usubjid, :paramcd, :param, :aval, :avalc, :adt, :aseq, :anl01fl)
		`, recordRow{RunID: rn.ID.String(), ResultRecord: rec})
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert record %d of run %s", rec.ASEQ, rn.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

// Get retrieves a run with its records in ASEQ order
func (r *RunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*run.Run, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, created_at, subject_id, column_name, n, reference_mean, alpha, sidedness, p_value, source, dropped, result_json
		FROM ttest_runs
		WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load run", err)
	}

	rn := &run.Run{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		SubjectID: row.SubjectID,
		Column:    row.Column,
		Source:    row.Source,
		Dropped:   row.Dropped,
	}
	if err := json.Unmarshal([]byte(row.ResultJSON), &rn.Result); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored test result")
	}

	var records []recordRow
	err = r.db.SelectContext(ctx, &records, r.db.Rebind(`
		SELECT run_id, usubjid, paramcd, param, aval, avalc, adt, aseq, anl01fl
		FROM adam_records
		WHERE run_id = ?
		ORDER BY aseq
	`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to load records", err)
	}

	rn.Records = make([]adam.ResultRecord, len(records))
	for i, rec := range records {
		rn.Records[i] = rec.ResultRecord
	}
	return rn, nil
}

// List returns run summaries, newest first
func (r *RunRepositoryImpl) List(ctx context.Context, limit, offset int) ([]run.Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	summaries := []run.Summary{}
	err := r.db.SelectContext(ctx, &summaries, r.db.Rebind(`
		SELECT id, created_at, subject_id, column_name, n, reference_mean, alpha, sidedness, p_value
		FROM ttest_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return summaries, nil
}

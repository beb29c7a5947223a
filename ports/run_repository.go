package ports

import (
	"context"

	"adamstat/domain/core"
	"adamstat/domain/run"
)

// RunRepository persists completed t-test runs
type RunRepository interface {
	// Save stores the run and its records atomically
	Save(ctx context.Context, r *run.Run) error

	// Get returns a stored run, or core.ErrRunNotFound
	Get(ctx context.Context, id core.RunID) (*run.Run, error)

	// List returns run summaries, newest first
	List(ctx context.Context, limit, offset int) ([]run.Summary, error)
}

package run

import (
	"time"

	"adamstat/domain/adam"
	"adamstat/domain/core"
	"adamstat/domain/stats"
)

// Run is one completed one-sample t-test with its BDS records
type Run struct {
	ID        core.RunID          `json:"runId"`
	CreatedAt time.Time           `json:"createdAt"`
	SubjectID string              `json:"subjectId"`
	Column    string              `json:"column"`
	Source    string              `json:"source,omitempty"` // input file, empty for inline samples
	Dropped   int                 `json:"dropped"`          // missing cells removed before computation
	Result    stats.TestResult    `json:"result"`
	Records   []adam.ResultRecord `json:"records"`
}

// Summary is the listing view of a stored run
type Summary struct {
	ID            core.RunID      `json:"runId" db:"id"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	SubjectID     string          `json:"subjectId" db:"subject_id"`
	Column        string          `json:"column" db:"column_name"`
	N             int             `json:"n" db:"n"`
	ReferenceMean float64         `json:"referenceMean" db:"reference_mean"`
	Alpha         float64         `json:"alpha" db:"alpha"`
	Sidedness     stats.Sidedness `json:"sidedness" db:"sidedness"`
	PValue        float64         `json:"pValue" db:"p_value"`
}

// Summarize derives the listing view of r
func (r *Run) Summarize() Summary {
	return Summary{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		SubjectID:     r.SubjectID,
		Column:        r.Column,
		N:             r.Result.N,
		ReferenceMean: r.Result.Params.ReferenceMean,
		Alpha:         r.Result.Params.Alpha,
		Sidedness:     r.Result.Params.Sidedness,
		PValue:        r.Result.PValue,
	}
}

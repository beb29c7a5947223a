package engine

import (
	"fmt"
	"math"

	"adamstat/domain/core"
	"adamstat/domain/stats"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestEngine computes one-sample Student's t-tests
type TTestEngine struct{}

// NewTTestEngine creates a new one-sample t-test engine
func NewTTestEngine() *TTestEngine {
	return &TTestEngine{}
}

// Compute runs a one-sample t-test of sample against params.ReferenceMean.
//
// All preconditions are checked before any statistic is computed. The result
// keeps full floating-point precision; rounding belongs to record construction.
//
// One-sided p-values are the two-sided p-value halved without checking which
// tail t falls in. When the sample mean lies on the opposite side of the
// reference from the tested alternative the reported p-value is too small.
func (e *TTestEngine) Compute(sample []float64, params stats.TestParams) (stats.TestResult, error) {
	if err := params.Validate(); err != nil {
		return stats.TestResult{}, err
	}
	if err := validateSample(sample); err != nil {
		return stats.TestResult{}, err
	}

	n := len(sample)
	mean, err := mstats.Mean(sample)
	if err != nil {
		return stats.TestResult{}, fmt.Errorf("mean: %w", err)
	}
	sd, err := mstats.StandardDeviationSample(sample)
	if err != nil {
		return stats.TestResult{}, fmt.Errorf("standard deviation: %w", err)
	}
	if sd == 0 {
		return stats.TestResult{}, core.NewParameterError("sample", "has zero variance; t-statistic is undefined")
	}

	stdErr := sd / math.Sqrt(float64(n))
	df := n - 1
	t := (mean - params.ReferenceMean) / stdErr

	dist := studentsT(df)
	rawP := 2 * (1 - dist.CDF(math.Abs(t)))

	pValue := rawP
	tCrit := dist.Quantile(1 - params.Alpha/2)
	if params.Sidedness.IsOneSided() {
		pValue = rawP / 2
		tCrit = dist.Quantile(1 - params.Alpha)
	}

	margin := tCrit * stdErr
	lower, upper := stats.NotApplicable, stats.NotApplicable
	switch params.Sidedness {
	case stats.TwoSided:
		lower, upper = stats.Some(mean-margin), stats.Some(mean+margin)
	case stats.UpperOneSided:
		lower = stats.Some(mean - margin)
	case stats.LowerOneSided:
		upper = stats.Some(mean + margin)
	}

	if !allFinite(mean, sd, stdErr, t, rawP, lower.Value, upper.Value) {
		return stats.TestResult{}, core.NewParameterError("sample", "statistics overflow float64")
	}

	return stats.TestResult{
		N:         n,
		Mean:      mean,
		SD:        sd,
		StdErr:    stdErr,
		DF:        df,
		TStat:     t,
		RawPValue: rawP,
		PValue:    pValue,
		TCrit:     tCrit,
		Lower:     lower,
		Upper:     upper,
		Params:    params,
	}, nil
}

// studentsT returns the standard Student's t distribution with df degrees of freedom
func studentsT(df int) distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
}

func validateSample(sample []float64) error {
	if len(sample) < 2 {
		return core.NewInsufficientDataError(len(sample))
	}
	for i, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewParameterError("sample", fmt.Sprintf("value at index %d is not finite", i))
		}
	}
	return nil
}

func allFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

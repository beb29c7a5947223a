package engine

import (
	"errors"
	"math"
	"testing"

	"adamstat/domain/core"
	"adamstat/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var sbp = []float64{120, 122, 118, 125, 119, 121, 123, 117}

func params(ref, alpha float64, s stats.Sidedness) stats.TestParams {
	return stats.TestParams{ReferenceMean: ref, Alpha: alpha, Sidedness: s}
}

func TestCompute_TwoSidedKnownValues(t *testing.T) {
	res, err := NewTTestEngine().Compute(sbp, params(120, 0.05, stats.TwoSided))
	require.NoError(t, err)

	assert.Equal(t, 8, res.N)
	assert.Equal(t, 7, res.DF)
	assert.InDelta(t, 120.625, res.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(7.125), res.SD, 1e-12)
	assert.InDelta(t, 0.9437293044, res.StdErr, 1e-9)
	assert.InDelta(t, 0.6622661785, res.TStat, 1e-9)
	assert.InDelta(t, 0.5289936, res.PValue, 1e-5)
	assert.Equal(t, res.RawPValue, res.PValue)
	assert.InDelta(t, 2.3646242516, res.TCrit, 1e-6)

	require.True(t, res.Lower.Valid)
	require.True(t, res.Upper.Valid)
	assert.InDelta(t, 118.3934348, res.Lower.Value, 1e-5)
	assert.InDelta(t, 122.8565652, res.Upper.Value, 1e-5)
}

func TestCompute_OneSidedBounds(t *testing.T) {
	e := NewTTestEngine()

	upper, err := e.Compute(sbp, params(120, 0.05, stats.UpperOneSided))
	require.NoError(t, err)
	assert.True(t, upper.Lower.Valid)
	assert.False(t, upper.Upper.Valid)
	assert.InDelta(t, 1.8945786, upper.TCrit, 1e-5)
	assert.InDelta(t, 118.8370307, upper.Lower.Value, 1e-5)
	assert.InDelta(t, upper.RawPValue/2, upper.PValue, 1e-15)

	lower, err := e.Compute(sbp, params(120, 0.05, stats.LowerOneSided))
	require.NoError(t, err)
	assert.False(t, lower.Lower.Valid)
	assert.True(t, lower.Upper.Valid)
	assert.InDelta(t, 122.4129693, lower.Upper.Value, 1e-5)

	// halving ignores which tail t falls in
	assert.Equal(t, upper.PValue, lower.PValue)
}

func TestCompute_SymmetricSample(t *testing.T) {
	res, err := NewTTestEngine().Compute([]float64{95, 98, 100, 102, 105}, params(100, 0.05, stats.TwoSided))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.TStat, 1e-12)
	assert.InDelta(t, 1, res.PValue, 1e-12)
}

func TestCompute_InvalidInput(t *testing.T) {
	e := NewTTestEngine()

	tests := []struct {
		name   string
		sample []float64
		params stats.TestParams
		target error
	}{
		{"alpha above one", sbp, params(120, 1.5, stats.TwoSided), core.ErrInvalidParameter},
		{"alpha zero", sbp, params(120, 0, stats.TwoSided), core.ErrInvalidParameter},
		{"unknown sidedness", sbp, params(120, 0.05, stats.Sidedness(5)), core.ErrInvalidParameter},
		{"single observation", []float64{1}, params(0, 0.05, stats.TwoSided), core.ErrInsufficientData},
		{"empty sample", nil, params(0, 0.05, stats.TwoSided), core.ErrInsufficientData},
		{"nan value", []float64{1, math.NaN(), 3}, params(0, 0.05, stats.TwoSided), core.ErrInvalidParameter},
		{"zero variance", []float64{4, 4, 4}, params(0, 0.05, stats.TwoSided), core.ErrInvalidParameter},
		{"overflowing spread", []float64{1e308, -1e308, 1e308}, params(0, 0.05, stats.TwoSided), core.ErrInvalidParameter},
		{"overflowing spread one-sided", []float64{1e308, -1e308, 1e308}, params(0, 0.05, stats.LowerOneSided), core.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Compute(tt.sample, tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Equal(t, stats.TestResult{}, res)
		})
	}
}

func sampleGen() *rapid.Generator[[]float64] {
	return rapid.SliceOfN(rapid.Float64Range(-1000, 1000), 3, 60)
}

func TestProperty_DerivedQuantities(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sample := sampleGen().Draw(rt, "sample")
		ref := rapid.Float64Range(-1000, 1000).Draw(rt, "ref")

		res, err := NewTTestEngine().Compute(sample, params(ref, 0.05, stats.TwoSided))
		if err != nil {
			// constant samples are rejected
			require.ErrorIs(rt, err, core.ErrInvalidParameter)
			return
		}

		assert.Equal(rt, len(sample)-1, res.DF)
		assert.InDelta(rt, res.SD/math.Sqrt(float64(len(sample))), res.StdErr, 1e-9*math.Max(1, res.StdErr))
		assert.GreaterOrEqual(rt, res.PValue, 0.0)
		assert.LessOrEqual(rt, res.PValue, 1.0)
	})
}

func TestProperty_TwoSidedIsTwiceOneSided(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sample := sampleGen().Draw(rt, "sample")
		ref := rapid.Float64Range(-1000, 1000).Draw(rt, "ref")
		e := NewTTestEngine()

		two, err := e.Compute(sample, params(ref, 0.05, stats.TwoSided))
		if err != nil {
			return
		}
		one, err := e.Compute(sample, params(ref, 0.05, stats.UpperOneSided))
		require.NoError(rt, err)

		assert.Equal(rt, two.TStat, one.TStat)
		assert.InDelta(rt, two.PValue, 2*one.PValue, 1e-15)
	})
}

func TestProperty_IntervalWidensAsAlphaShrinks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sample := sampleGen().Draw(rt, "sample")
		a1 := rapid.Float64Range(0.001, 0.5).Draw(rt, "alpha")
		a2 := a1 / rapid.Float64Range(1.5, 10).Draw(rt, "shrink")
		e := NewTTestEngine()

		wide, err := e.Compute(sample, params(0, a2, stats.TwoSided))
		if err != nil {
			return
		}
		if wide.StdErr < 1e-6*math.Max(1, math.Abs(wide.Mean)) {
			rt.Skip("interval too narrow to compare in float64")
		}
		narrow, err := e.Compute(sample, params(0, a1, stats.TwoSided))
		require.NoError(rt, err)

		assert.Less(rt, wide.Lower.Value, narrow.Lower.Value)
		assert.Greater(rt, wide.Upper.Value, narrow.Upper.Value)
	})
}

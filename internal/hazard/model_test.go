package hazard

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// curveSeries returns n consecutive periods whose values sit exactly on
// a·log(RI)+b once ranked, in shuffled period order.
func curveSeries(n int, base LogBase, a, b float64) []Observation {
	values := make([]float64, n)
	for rank := 1; rank <= n; rank++ {
		// record_span + 1 == n for consecutive periods.
		values[rank-1] = a*base.Log(float64(n)/float64(rank)) + b
	}
	rng := rand.New(rand.NewPCG(1, 2))
	rng.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })

	series := make([]Observation, n)
	for i := range series {
		series[i] = Observation{Period: 1960 + i, Value: values[i]}
	}
	return series
}

func testModel(t *testing.T, base LogBase) Model {
	t.Helper()
	return Model{
		Base:            base,
		Ties:            TieAverage,
		Domain:          testDomain(t),
		ConfidenceLevel: 0.95,
		Thresholds:      []float64{25, 50},
		HorizonYears:    100,
		Ks:              KRange(1, 49),
	}
}

func TestModel_Analyze(t *testing.T) {
	series := curveSeries(63, LogNatural, 3, 7)

	analysis, err := testModel(t, LogNatural).Analyze(series)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, analysis.Fit.A, 1e-6)
	assert.InDelta(t, 7.0, analysis.Fit.B, 1e-6)
	assert.Equal(t, 63, analysis.Summary.Count)
	assert.Equal(t, 62, analysis.Summary.RecordSpan)
	require.Len(t, analysis.Ranked, 63)
	require.Len(t, analysis.Residuals, 63)
	assert.Len(t, analysis.Band.Lower, 1000)
	assert.Len(t, analysis.Exceedance.Rows, 2*49)

	for _, r := range analysis.Residuals {
		assert.InDelta(t, 0, r.Residual, 1e-6)
	}

	// RI(25) = e^6 ≈ 403 years: about a quarter of an event per century.
	assert.InDelta(t, 100/math.Exp(6), analysis.Exceedance.Thresholds[0].Lambda, 1e-6)
}

func TestModel_AnalyzePropagatesStageErrors(t *testing.T) {
	m := testModel(t, LogNatural)

	_, err := m.Analyze([]Observation{{Period: 1990, Value: 3}})
	require.ErrorIs(t, err, ErrInsufficientData)

	// Constant losses all tie, so every return interval is identical.
	flat := []Observation{{Period: 1990, Value: 3}, {Period: 1991, Value: 3}, {Period: 1992, Value: 3}}
	_, err = m.Analyze(flat)
	require.ErrorIs(t, err, ErrFitDivergence)

	m.Thresholds = []float64{-1}
	_, err = m.Analyze(curveSeries(10, LogNatural, 2, 1))
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestSplitEpochs(t *testing.T) {
	series := []Observation{
		{Period: 1989, Value: 1},
		{Period: 1990, Value: 2},
		{Period: 1991, Value: 3},
		{Period: 1992, Value: 4},
	}

	before, after := SplitEpochs(series, 1991)
	assert.Equal(t, []Observation{{Period: 1989, Value: 1}, {Period: 1990, Value: 2}}, before)
	assert.Equal(t, []Observation{{Period: 1991, Value: 3}, {Period: 1992, Value: 4}}, after)

	before[0].Value = 99
	assert.Equal(t, 1.0, series[0].Value, "split must not alias the input")
}

func TestSplitEpochs_SubsetSpanIsRecomputed(t *testing.T) {
	series := curveSeries(40, LogNatural, 2, 5)
	before, _ := SplitEpochs(series, 1980)

	ranked, err := EstimateReturnIntervals(before, TieAverage)
	require.NoError(t, err)

	maxRI := 0.0
	for _, r := range ranked {
		maxRI = math.Max(maxRI, r.ReturnInterval)
	}
	assert.Equal(t, 20.0, maxRI, "1960-1979 gives span 19, so rank 1 has RI 20")
}

func TestExcludePeriods(t *testing.T) {
	series := []Observation{{Period: 1983, Value: 1}, {Period: 1984, Value: 50}, {Period: 1985, Value: 2}}
	got := ExcludePeriods(series, []int{1984})
	assert.Equal(t, []Observation{{Period: 1983, Value: 1}, {Period: 1985, Value: 2}}, got)
	assert.Len(t, series, 3)
}

func TestCompareEpochs(t *testing.T) {
	before := FitResult{A: 2, B: 1, Base: Log10, Covariance: [2][2]float64{{0.09, 0}, {0, 0.01}}}
	after := FitResult{A: 3, B: 0.5, Base: Log10, Covariance: [2][2]float64{{0.16, 0}, {0, 0.01}}}

	cmp, err := CompareEpochs(before, after)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmp.SlopeDelta, 1e-12)
	assert.InDelta(t, -0.5, cmp.InterceptDelta, 1e-12)
	assert.InDelta(t, 2.0, cmp.SlopeZ, 1e-12)
	assert.InDelta(t, 0.0455, cmp.SlopePValue, 1e-4)

	same, err := CompareEpochs(FitResult{A: 1}, FitResult{A: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, same.SlopePValue)

	_, err = CompareEpochs(FitResult{Base: Log10}, FitResult{Base: LogNatural})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]Observation{
		{Period: 2001, Value: 4},
		{Period: 1999, Value: 1},
		{Period: 2000, Value: 3},
		{Period: 2002, Value: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1999, s.FirstPeriod)
	assert.Equal(t, 2002, s.LastPeriod)
	assert.Equal(t, 3, s.RecordSpan)
	assert.Equal(t, 10.0, s.Total)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 2.5, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.StdDev, 1e-12)

	one, err := Summarize([]Observation{{Period: 2000, Value: 7}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, one.StdDev)

	_, err = Summarize(nil)
	require.ErrorIs(t, err, ErrInsufficientData)
}

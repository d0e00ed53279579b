package hazard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedReturnInterval_RoundTrip(t *testing.T) {
	fits := []FitResult{
		{A: 3, B: 7, Base: LogNatural},
		{A: 42.5, B: -12, Base: Log10},
		{A: -1.5, B: 40, Base: LogNatural},
	}
	for _, fit := range fits {
		for _, threshold := range []float64{5, 25, 50, 100, 150} {
			ri, err := fit.ImpliedReturnInterval(threshold)
			require.NoError(t, err)
			assert.Greater(t, ri, 0.0)
			assert.InEpsilon(t, threshold, fit.Evaluate(ri), 1e-9)
		}
	}
}

func TestImpliedReturnInterval_Log10(t *testing.T) {
	fit := FitResult{A: 2, B: 1, Base: Log10}
	ri, err := fit.ImpliedReturnInterval(5)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ri, 1e-9)
}

func TestImpliedReturnInterval_Errors(t *testing.T) {
	tests := []struct {
		name      string
		fit       FitResult
		threshold float64
	}{
		{name: "zero slope", fit: FitResult{A: 0, B: 5}, threshold: 10},
		{name: "zero threshold", fit: FitResult{A: 1, B: 5}, threshold: 0},
		{name: "negative threshold", fit: FitResult{A: 1, B: 5}, threshold: -3},
		{name: "NaN threshold", fit: FitResult{A: 1, B: 5}, threshold: math.NaN()},
		{name: "underflowing interval", fit: FitResult{A: 1, B: 1000}, threshold: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fit.ImpliedReturnInterval(tt.threshold)
			require.ErrorIs(t, err, ErrInvalidThreshold)
		})
	}
}

func TestPoissonPMF_MatchesDirectFormula(t *testing.T) {
	for _, lambda := range []float64{0.3, 1, 2.5, 9} {
		fact := 1.0
		for k := 0; k <= 12; k++ {
			if k > 0 {
				fact *= float64(k)
			}
			want := math.Pow(lambda, float64(k)) * math.Exp(-lambda) / fact
			got, err := PoissonPMF(k, lambda)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-12, "k=%d λ=%v", k, lambda)
		}
	}
}

func TestPoissonPMF_MassSumsToOne(t *testing.T) {
	for _, lambda := range []float64{10, 25, 200, 1500} {
		upper := int(math.Ceil(lambda + 10*math.Sqrt(lambda)))
		var sum float64
		for _, k := range KRange(1, upper) {
			p, err := PoissonPMF(k, lambda)
			require.NoError(t, err)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-3, "λ=%v", lambda)
	}

	// For small rates most of the mass sits at k = 0.
	var sum float64
	for _, k := range KRange(0, 30) {
		p, err := PoissonPMF(k, 0.4)
		require.NoError(t, err)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPoissonPMF_LargeCountsStayFinite(t *testing.T) {
	// 500! overflows float64; the log-gamma path must not.
	p, err := PoissonPMF(500, 450)
	require.NoError(t, err)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1.0)

	p, err = PoissonPMF(1000, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p, "vanishing mass underflows to zero, not NaN")
}

func TestPoissonPMF_Edges(t *testing.T) {
	p, err := PoissonPMF(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	p, err = PoissonPMF(3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	_, err = PoissonPMF(-1, 2)
	require.ErrorIs(t, err, ErrInvalidKRange)

	_, err = PoissonPMF(2, math.Inf(1))
	require.ErrorIs(t, err, ErrNumericOverflow)
}

func TestBuildExceedanceTable(t *testing.T) {
	fit := FitResult{A: 3, B: 7, Base: LogNatural}
	thresholds := []float64{10, 20}

	table, err := BuildExceedanceTable(fit, thresholds, 100, KRange(1, 5))
	require.NoError(t, err)

	assert.Equal(t, 100.0, table.HorizonYears)
	require.Len(t, table.Rows, 10)
	require.Len(t, table.Thresholds, 2)

	for i, threshold := range thresholds {
		wantRI := math.Exp((threshold - 7) / 3)
		wantLambda := 100 / wantRI

		summary := table.Thresholds[i]
		assert.Equal(t, threshold, summary.Threshold)
		assert.InDelta(t, wantRI, summary.ReturnInterval, 1e-9)
		assert.InDelta(t, wantLambda, summary.Lambda, 1e-9)
		assert.InDelta(t, 1-math.Exp(-wantLambda), summary.AtLeastOnce, 1e-12)

		rows := table.ForThreshold(threshold)
		require.Len(t, rows, 5)
		for j, row := range rows {
			assert.Equal(t, j+1, row.K)
			want, err := PoissonPMF(row.K, wantLambda)
			require.NoError(t, err)
			assert.InDelta(t, want, row.Probability, 1e-12)
			assert.InDelta(t, wantLambda, row.Lambda, 1e-9)
		}
	}

	// Higher thresholds recur less often.
	assert.Greater(t, table.Thresholds[0].Lambda, table.Thresholds[1].Lambda)
}

func TestBuildExceedanceTable_OverflowingIntervalGivesZeroRate(t *testing.T) {
	fit := FitResult{A: 1, B: 0, Base: LogNatural}

	table, err := BuildExceedanceTable(fit, []float64{1000}, 50, KRange(0, 3))
	require.NoError(t, err)

	assert.True(t, math.IsInf(table.Thresholds[0].ReturnInterval, 1))
	assert.Equal(t, 0.0, table.Thresholds[0].Lambda)
	assert.Equal(t, 1.0, table.Rows[0].Probability)
	assert.Equal(t, 0.0, table.Rows[1].Probability)
}

func TestBuildExceedanceTable_Errors(t *testing.T) {
	fit := FitResult{A: 3, B: 7, Base: LogNatural}

	_, err := BuildExceedanceTable(fit, []float64{10}, 0, KRange(1, 3))
	require.ErrorIs(t, err, ErrInvalidHorizon)

	_, err = BuildExceedanceTable(fit, []float64{10}, 50, nil)
	require.ErrorIs(t, err, ErrInvalidKRange)

	_, err = BuildExceedanceTable(fit, []float64{10}, 50, []int{1, -2})
	require.ErrorIs(t, err, ErrInvalidKRange)

	_, err = BuildExceedanceTable(FitResult{A: 0, B: 7}, []float64{10}, 50, KRange(1, 3))
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestKRange(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, KRange(1, 3))
	assert.Nil(t, KRange(4, 1))
	assert.Len(t, KRange(1, 49), 49)
}

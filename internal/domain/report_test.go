package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-claims-risk/internal/hazard"
)

var testNow = time.Date(2024, 5, 22, 11, 54, 29, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { SetClock(nil) })
}

func testScope() ReportScope {
	return ReportScope{
		Metric:          MetricTotal,
		Unit:            MetricTotal.Unit(),
		ExcludedEvents:  DefaultExcludedEvents,
		SplitYear:       1991,
		LogBase:         hazard.LogNatural.String(),
		TiePolicy:       hazard.TieAverage.String(),
		HorizonYears:    100,
		ConfidenceLevel: 0.95,
	}
}

// twoPointAnalysis has no residual degrees of freedom, so its covariance
// and band are infinite and must encode as null.
func twoPointAnalysis(t *testing.T) hazard.Analysis {
	t.Helper()
	domain, err := hazard.LinearDomain(1, 10, 4)
	require.NoError(t, err)
	m := hazard.Model{
		Base:            hazard.LogNatural,
		Domain:          domain,
		ConfidenceLevel: 0.95,
		Thresholds:      []float64{5, 1e6},
		HorizonYears:    100,
		Ks:              hazard.KRange(0, 2),
	}
	a, err := m.Analyze([]hazard.Observation{{Period: 2000, Value: 1}, {Period: 2001, Value: 3}})
	require.NoError(t, err)
	return a
}

func TestReportScope_Key(t *testing.T) {
	s := testScope()
	assert.Equal(t, "category=all|metric=total|split=1991|base=ln", s.Key())

	s.Category = CategoryHurricane
	s.LogBase = "log10"
	assert.Equal(t, "category=Hurricane/TropicalStorm|metric=total|split=1991|base=log10", s.Key())
}

func TestNewReport_DeterministicID(t *testing.T) {
	freezeClock(t)

	r1 := NewReport(testScope(), nil)
	r2 := NewReport(testScope(), nil)
	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, testNow, r1.GeneratedAt)

	other := testScope()
	other.SplitYear = 2000
	assert.NotEqual(t, r1.ID, NewReport(other, nil).ID)
}

func TestNewBranchReport(t *testing.T) {
	a := twoPointAnalysis(t)
	br := NewBranchReport("all", a)

	assert.Equal(t, StatusOK, br.Status)
	require.NotNil(t, br.Fit)
	assert.Equal(t, a.Fit.A, br.Fit.A)
	assert.Nil(t, br.Fit.StdErrA, "infinite standard error becomes null")
	assert.Nil(t, br.Fit.Covariance[0][0])
	assert.Equal(t, "ln", br.Fit.Base)

	require.Len(t, br.Band.Points, 4)
	assert.Equal(t, 1.0, br.Band.Points[0].ReturnInterval)
	assert.Nil(t, br.Band.Points[1].Upper)

	require.Len(t, br.Exceedance.Thresholds, 2)
	assert.NotNil(t, br.Exceedance.Thresholds[0].ReturnInterval)
	assert.Nil(t, br.Exceedance.Thresholds[1].ReturnInterval, "unreachable threshold has no finite RI")
	assert.Len(t, br.Exceedance.Rows, 6)
	assert.Len(t, br.Series, 2)
	assert.Len(t, br.Residuals, 2)
}

func TestFailedBranch(t *testing.T) {
	err := fmt.Errorf("branch before_1991: %w", hazard.ErrInsufficientData)
	br := FailedBranch("before_1991", err)

	assert.Equal(t, StatusFailed, br.Status)
	assert.Equal(t, "insufficient_data", br.ErrorKind)
	assert.Contains(t, br.Error, "before_1991")
	assert.Nil(t, br.Fit)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "fit_divergence", ErrorKind(fmt.Errorf("x: %w", hazard.ErrFitDivergence)))
	assert.Equal(t, "numeric_overflow", ErrorKind(hazard.ErrNumericOverflow))
	assert.Equal(t, "invalid_claim", ErrorKind(ErrInvalidClaim))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}

func TestNewEpochView(t *testing.T) {
	v := NewEpochView("before_1991", "from_1991", hazard.EpochComparison{SlopeDelta: 1, SlopeZ: math.Inf(1)})
	assert.Nil(t, v.SlopeZ)
	assert.Equal(t, 1.0, v.SlopeDelta)
}

func TestSerializeReport(t *testing.T) {
	freezeClock(t)

	report := NewReport(testScope(), []BranchReport{
		NewBranchReport("all", twoPointAnalysis(t)),
		FailedBranch("before_1991", hazard.ErrInsufficientData),
	})

	out, err := SerializeReport(report)
	require.NoError(t, err, "non-finite values must not reach the encoder")

	assert.Equal(t, []byte(testScope().Key()), out.Key)
	assert.Equal(t, report.ID, out.Headers["report_id"])
	assert.Equal(t, "2024-05-22T11:54:29Z", out.Headers["generated_at"])
	assert.Equal(t, "all,before_1991", out.Headers["branches"])
	assert.Equal(t, "1", out.Headers["branches_failed"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, report.ID, decoded["id"])

	branches, ok := decoded["branches"].([]any)
	require.True(t, ok)
	require.Len(t, branches, 2)
	first := branches[0].(map[string]any)
	fit := first["fit"].(map[string]any)
	assert.Nil(t, fit["std_err_a"])
	assert.Contains(t, fit, "std_err_a", "null fields are kept, not omitted")
}

package hazard

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// Model bundles the settings of one return-interval analysis so every
// branch of a run (full record, early epoch, late epoch) is evaluated the
// same way.
type Model struct {
	Base            LogBase
	Ties            TiePolicy
	Domain          []float64
	ConfidenceLevel float64
	Thresholds      []float64
	HorizonYears    float64
	Ks              []int
}

// Analysis is the output of Model.Analyze for one series.
type Analysis struct {
	Summary    SeriesSummary
	Ranked     []RankedObservation
	Fit        FitResult
	Band       Band
	Residuals  []Residual
	Exceedance ExceedanceTable
}

// Analyze runs the estimator, fitter and exceedance calculator over series.
// Any stage failure aborts the analysis of this series only.
func (m Model) Analyze(series []Observation) (Analysis, error) {
	summary, err := Summarize(series)
	if err != nil {
		return Analysis{}, err
	}
	ranked, err := EstimateReturnIntervals(series, m.Ties)
	if err != nil {
		return Analysis{}, err
	}
	fit, err := Fit(ranked, m.Domain, m.Base)
	if err != nil {
		return Analysis{}, err
	}
	band, err := fit.ConfidenceBand(m.ConfidenceLevel)
	if err != nil {
		return Analysis{}, err
	}
	table, err := BuildExceedanceTable(fit, m.Thresholds, m.HorizonYears, m.Ks)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Summary:    summary,
		Ranked:     ranked,
		Fit:        fit,
		Band:       band,
		Residuals:  fit.Residuals(ranked),
		Exceedance: table,
	}, nil
}

// SplitEpochs returns two new series: periods strictly before split, and
// periods from split onwards. Neither shares backing storage with series,
// and each must be estimated on its own so its record span is its own.
func SplitEpochs(series []Observation, split int) (before, after []Observation) {
	for _, o := range series {
		if o.Period < split {
			before = append(before, o)
		} else {
			after = append(after, o)
		}
	}
	return before, after
}

// ExcludePeriods returns a copy of series without the listed periods.
func ExcludePeriods(series []Observation, periods []int) []Observation {
	out := make([]Observation, 0, len(series))
	for _, o := range series {
		if slices.Contains(periods, o.Period) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// EpochComparison contrasts the fits of two epochs of the same record.
type EpochComparison struct {
	SlopeDelta     float64
	InterceptDelta float64
	// SlopeZ is (A_after - A_before) / sqrt(σ²_before + σ²_after).
	SlopeZ float64
	// SlopePValue is the two-sided normal p-value of SlopeZ; small values
	// suggest the loss curve changed between epochs.
	SlopePValue float64
}

// CompareEpochs tests whether the fitted slope differs between two epochs,
// treating the two fits as independent.
func CompareEpochs(before, after FitResult) (EpochComparison, error) {
	if before.Base != after.Base {
		return EpochComparison{}, fmt.Errorf("epochs fitted with different log bases (%s, %s)", before.Base, after.Base)
	}
	cmp := EpochComparison{
		SlopeDelta:     after.A - before.A,
		InterceptDelta: after.B - before.B,
	}
	se := math.Sqrt(before.Covariance[0][0] + after.Covariance[0][0])
	switch {
	case se == 0 && cmp.SlopeDelta == 0:
		cmp.SlopeZ, cmp.SlopePValue = 0, 1
	case se == 0:
		cmp.SlopeZ, cmp.SlopePValue = math.Copysign(math.Inf(1), cmp.SlopeDelta), 0
	default:
		cmp.SlopeZ = cmp.SlopeDelta / se
		cmp.SlopePValue = 2 * distuv.UnitNormal.Survival(math.Abs(cmp.SlopeZ))
	}
	return cmp, nil
}

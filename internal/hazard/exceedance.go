package hazard

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ExceedanceRow is the Poisson probability of exactly K exceedances of
// Threshold within the table's horizon.
type ExceedanceRow struct {
	Threshold      float64
	K              int
	ReturnInterval float64
	Lambda         float64
	Probability    float64
}

// ThresholdSummary holds the per-threshold quantities shared by every k.
type ThresholdSummary struct {
	Threshold      float64
	ReturnInterval float64
	Lambda         float64
	// AtLeastOnce is P(N >= 1) = 1 - e^{-λ} over the horizon.
	AtLeastOnce float64
}

// ExceedanceTable is the flat (threshold, k) → probability table derived
// from one FitResult. Probabilities are exact Poisson masses and are not
// renormalised over the truncated k range.
type ExceedanceTable struct {
	HorizonYears float64
	Thresholds   []ThresholdSummary
	Rows         []ExceedanceRow
}

// ImpliedReturnInterval inverts the fitted curve, returning the return
// interval at which the modelled loss equals threshold.
func (f FitResult) ImpliedReturnInterval(threshold float64) (float64, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return 0, fmt.Errorf("%w: threshold %v must be a positive number", ErrInvalidThreshold, threshold)
	}
	if f.A == 0 {
		return 0, fmt.Errorf("%w: fitted curve has zero slope", ErrInvalidThreshold)
	}
	ri := f.Base.Pow((threshold - f.B) / f.A)
	if math.IsNaN(ri) || ri <= 0 {
		return 0, fmt.Errorf("%w: threshold %v implies return interval %v", ErrInvalidThreshold, threshold, ri)
	}
	return ri, nil
}

// BuildExceedanceTable converts each threshold to an implied return
// interval, then to a Poisson rate λ = horizonYears / RI, and tabulates
// P(k; λ) for every k in ks.
func BuildExceedanceTable(fit FitResult, thresholds []float64, horizonYears float64, ks []int) (ExceedanceTable, error) {
	if math.IsNaN(horizonYears) || math.IsInf(horizonYears, 0) || horizonYears <= 0 {
		return ExceedanceTable{}, fmt.Errorf("%w: %v", ErrInvalidHorizon, horizonYears)
	}
	if len(ks) == 0 {
		return ExceedanceTable{}, fmt.Errorf("%w: empty", ErrInvalidKRange)
	}
	for _, k := range ks {
		if k < 0 {
			return ExceedanceTable{}, fmt.Errorf("%w: negative count %d", ErrInvalidKRange, k)
		}
	}

	table := ExceedanceTable{
		HorizonYears: horizonYears,
		Thresholds:   make([]ThresholdSummary, 0, len(thresholds)),
		Rows:         make([]ExceedanceRow, 0, len(thresholds)*len(ks)),
	}
	for _, t := range thresholds {
		ri, err := fit.ImpliedReturnInterval(t)
		if err != nil {
			return ExceedanceTable{}, err
		}
		lambda := horizonYears / ri

		table.Thresholds = append(table.Thresholds, ThresholdSummary{
			Threshold:      t,
			ReturnInterval: ri,
			Lambda:         lambda,
			AtLeastOnce:    -math.Expm1(-lambda),
		})
		for _, k := range ks {
			p, err := PoissonPMF(k, lambda)
			if err != nil {
				return ExceedanceTable{}, fmt.Errorf("threshold %v: %w", t, err)
			}
			table.Rows = append(table.Rows, ExceedanceRow{
				Threshold:      t,
				K:              k,
				ReturnInterval: ri,
				Lambda:         lambda,
				Probability:    p,
			})
		}
	}
	return table, nil
}

// PoissonPMF returns λ^k·e^{-λ}/k!, evaluated in log space through the
// log-gamma function so large k or λ neither overflow nor lose the
// factorial.
func PoissonPMF(k int, lambda float64) (float64, error) {
	if k < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrInvalidKRange, k)
	}
	if math.IsNaN(lambda) || lambda < 0 {
		return 0, fmt.Errorf("%w: poisson rate %v", ErrNumericOverflow, lambda)
	}
	if lambda == 0 {
		if k == 0 {
			return 1, nil
		}
		return 0, nil
	}
	if math.IsInf(lambda, 1) {
		return 0, fmt.Errorf("%w: infinite poisson rate", ErrNumericOverflow)
	}

	logP := distuv.Poisson{Lambda: lambda}.LogProb(float64(k))
	p := math.Exp(logP)
	if math.IsNaN(p) || math.IsInf(p, 0) || p > 1 {
		return 0, fmt.Errorf("%w: P(k=%d; λ=%v) = %v", ErrNumericOverflow, k, lambda, p)
	}
	return p, nil
}

// KRange returns the occurrence counts from..to inclusive.
func KRange(from, to int) []int {
	if to < from {
		return nil
	}
	ks := make([]int, 0, to-from+1)
	for k := from; k <= to; k++ {
		ks = append(ks, k)
	}
	return ks
}

// ForThreshold returns the rows belonging to threshold, in k order.
func (t ExceedanceTable) ForThreshold(threshold float64) []ExceedanceRow {
	var rows []ExceedanceRow
	for _, r := range t.Rows {
		if r.Threshold == threshold {
			rows = append(rows, r)
		}
	}
	return rows
}

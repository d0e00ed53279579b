package hazard

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinReliableReturnInterval is the return interval at or below which
// residuals are flagged as unreliable. Those rows stay in the fit.
const MinReliableReturnInterval = 1.5

// FitResult is the fitted model value = A·log(RI) + B, produced once per fit
// and never modified afterwards.
type FitResult struct {
	A    float64
	B    float64
	Base LogBase

	// Covariance of (A, B) scaled by the residual variance. It is filled
	// with +Inf when the fit has no residual degrees of freedom.
	Covariance [2][2]float64

	N                int
	DegreesOfFreedom int
	SSR              float64
	RSquared         float64

	Domain []float64
	Curve  []float64
}

// LinearDomain returns n evenly spaced return intervals from lo to hi
// inclusive.
func LinearDomain(lo, hi float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidDomain, n)
	}
	if !(lo > 0) || math.IsInf(hi, 0) || !(hi > lo) {
		return nil, fmt.Errorf("%w: bounds [%v, %v] must satisfy 0 < lo < hi", ErrInvalidDomain, lo, hi)
	}
	return floats.Span(make([]float64, n), lo, hi), nil
}

// Fit estimates A and B by least squares over every ranked observation with
// a finite value and a finite positive return interval, then evaluates the
// curve over domain.
func Fit(ranked []RankedObservation, domain []float64, base LogBase) (FitResult, error) {
	for _, x := range domain {
		if !(x > 0) || math.IsInf(x, 1) {
			return FitResult{}, fmt.Errorf("%w: return interval %v cannot be evaluated", ErrInvalidDomain, x)
		}
	}

	xs := make([]float64, 0, len(ranked))
	ys := make([]float64, 0, len(ranked))
	for _, r := range ranked {
		if !isFinite(r.Value) || !isFinite(r.ReturnInterval) || r.ReturnInterval <= 0 {
			continue
		}
		xs = append(xs, base.Log(r.ReturnInterval))
		ys = append(ys, r.Value)
	}
	if len(xs) < 2 {
		return FitResult{}, fmt.Errorf("%w: %d usable point(s)", ErrFitDivergence, len(xs))
	}
	if floats.Max(xs) == floats.Min(xs) {
		return FitResult{}, fmt.Errorf("%w: all return intervals are identical", ErrFitDivergence)
	}

	// stat.LinearRegression fits y = alpha + beta·x.
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if !isFinite(alpha) || !isFinite(beta) {
		return FitResult{}, fmt.Errorf("%w: non-finite coefficients a=%v b=%v", ErrFitDivergence, beta, alpha)
	}

	var ssr float64
	for i, x := range xs {
		d := ys[i] - (alpha + beta*x)
		ssr += d * d
	}
	dof := len(xs) - 2

	cov, err := parameterCovariance(xs, ssr, dof)
	if err != nil {
		return FitResult{}, err
	}

	fit := FitResult{
		A:                beta,
		B:                alpha,
		Base:             base,
		Covariance:       cov,
		N:                len(xs),
		DegreesOfFreedom: dof,
		SSR:              ssr,
		RSquared:         stat.RSquared(xs, ys, nil, alpha, beta),
		Domain:           append([]float64(nil), domain...),
	}
	fit.Curve = make([]float64, len(domain))
	for i, x := range domain {
		fit.Curve[i] = fit.Evaluate(x)
	}
	return fit, nil
}

// parameterCovariance returns s²·(XᵀX)⁻¹ for the design matrix [log(RI), 1].
func parameterCovariance(xs []float64, ssr float64, dof int) ([2][2]float64, error) {
	var cov [2][2]float64

	var sx, sxx float64
	for _, x := range xs {
		sx += x
		sxx += x * x
	}
	xtx := mat.NewSymDense(2, []float64{
		sxx, sx,
		sx, float64(len(xs)),
	})

	var chol mat.Cholesky
	if ok := chol.Factorize(xtx); !ok {
		return cov, fmt.Errorf("%w: normal equations are singular", ErrFitDivergence)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return cov, fmt.Errorf("%w: invert normal equations: %v", ErrFitDivergence, err)
	}

	if dof <= 0 {
		for i := range cov {
			for j := range cov[i] {
				cov[i][j] = math.Inf(1)
			}
		}
		return cov, nil
	}

	inv.ScaleSym(ssr/float64(dof), &inv)
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] = inv.At(i, j)
		}
	}
	return cov, nil
}

// Evaluate returns the fitted loss at return interval ri.
func (f FitResult) Evaluate(ri float64) float64 {
	return f.A*f.Base.Log(ri) + f.B
}

// StdErrA is the standard error of A.
func (f FitResult) StdErrA() float64 { return math.Sqrt(f.Covariance[0][0]) }

// StdErrB is the standard error of B.
func (f FitResult) StdErrB() float64 { return math.Sqrt(f.Covariance[1][1]) }

// ResidualVariance is SSR over the residual degrees of freedom, +Inf when
// there are none.
func (f FitResult) ResidualVariance() float64 {
	if f.DegreesOfFreedom <= 0 {
		return math.Inf(1)
	}
	return f.SSR / float64(f.DegreesOfFreedom)
}

// Band is a two-sided confidence band around the fitted curve.
type Band struct {
	Level float64
	Z     float64
	Lower []float64
	Upper []float64
}

// ConfidenceBand builds a two-sided band at the given level (0.95 gives
// z ≈ 1.96) over the fit's domain. The half-width z·sqrt((σa·log x)² + σb²)
// treats the errors of A and B as independent and ignores their covariance.
func (f FitResult) ConfidenceBand(level float64) (Band, error) {
	if !(level > 0 && level < 1) {
		return Band{}, fmt.Errorf("confidence level %v outside (0, 1)", level)
	}
	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)
	sa, sb := f.StdErrA(), f.StdErrB()

	band := Band{
		Level: level,
		Z:     z,
		Lower: make([]float64, len(f.Domain)),
		Upper: make([]float64, len(f.Domain)),
	}
	for i, x := range f.Domain {
		var aTerm float64
		// At log(x) == 0 the slope error contributes nothing, even when infinite.
		if lx := f.Base.Log(x); lx != 0 {
			aTerm = (sa * lx) * (sa * lx)
		}
		half := z * math.Sqrt(aTerm+sb*sb)
		band.Lower[i] = f.Curve[i] - half
		band.Upper[i] = f.Curve[i] + half
	}
	return band, nil
}

// Residual is the log-space difference between an observation and the
// fitted curve at its return interval.
type Residual struct {
	Period         int
	ReturnInterval float64
	Observed       float64
	Fitted         float64
	Residual       float64
	// Reliable is false for RI <= MinReliableReturnInterval, where the
	// curve is known to fit poorly.
	Reliable bool
}

// Residuals computes log(observed) - log(fitted) in the fit's base for every
// ranked observation. Residuals with a non-positive observed or fitted value
// are NaN.
func (f FitResult) Residuals(ranked []RankedObservation) []Residual {
	out := make([]Residual, len(ranked))
	for i, r := range ranked {
		fitted := f.Evaluate(r.ReturnInterval)
		res := math.NaN()
		if r.Value > 0 && fitted > 0 {
			res = f.Base.Log(r.Value) - f.Base.Log(fitted)
		}
		out[i] = Residual{
			Period:         r.Period,
			ReturnInterval: r.ReturnInterval,
			Observed:       r.Value,
			Fitted:         fitted,
			Residual:       res,
			Reliable:       r.ReturnInterval > MinReliableReturnInterval,
		}
	}
	return out
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

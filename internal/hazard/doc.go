// Package hazard models how often annual disaster losses of a given size
// recur, and how likely they are to be exceeded over a planning horizon.
//
// # Return intervals
//
// Each period of a loss series is ranked by value, largest first, and given
// the plotting-position return interval
//
//	RI = (record_span + 1) / rank,  record_span = max(period) - min(period)
//
// Tied values share the average of the ranks they occupy unless TieFirst is
// requested. The span is computed once per call over the whole input, so an
// epoch subset (e.g. the years before 1991) must be estimated separately.
//
// # Curve fit
//
// Losses are regressed on log(RI):
//
//	value = a·log(RI) + b
//
// The log base (natural or base-10) is a model setting; a and b only make
// sense relative to it, and the same base is reused when inverting the curve
// and when computing residuals. Parameter covariance is s²·(XᵀX)⁻¹ with
// s² = SSR/(n-2). Confidence bands combine the standard errors of a and b as
// if they were independent, which ignores the cross term of the covariance.
//
// # Exceedance
//
// A loss threshold t maps back to RI(t) = base^((t-b)/a). Over a horizon of
// H years the number of exceedances is modelled as Poisson with
// λ = H / RI(t), and P(k; λ) is evaluated through log-gamma so that k well
// past 170 stays finite.
package hazard

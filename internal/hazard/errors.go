package hazard

import "errors"

// Sentinel errors returned by the model. Callers match them with errors.Is;
// each is wrapped with context describing the offending input.
var (
	// ErrInsufficientData means the series cannot define a return interval:
	// it is empty or spans fewer than two distinct periods.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidObservation means an observation carries a negative or
	// non-finite value.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrFitDivergence means least squares could not produce finite
	// parameters, e.g. fewer than two usable points or a constant RI column.
	ErrFitDivergence = errors.New("fit diverged")

	// ErrInvalidDomain means the evaluation grid contains a point the log
	// model cannot evaluate.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrInvalidThreshold means the fitted curve cannot be inverted at the
	// requested threshold.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidHorizon means the Poisson horizon is not a positive number.
	ErrInvalidHorizon = errors.New("invalid horizon")

	// ErrInvalidKRange means the occurrence counts are empty or negative.
	ErrInvalidKRange = errors.New("invalid k range")

	// ErrNumericOverflow means a Poisson mass could not be represented as a
	// finite probability.
	ErrNumericOverflow = errors.New("numeric overflow")
)

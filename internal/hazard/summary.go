package hazard

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// SeriesSummary holds descriptive statistics of an annual loss series.
type SeriesSummary struct {
	Count        int
	FirstPeriod  int
	LastPeriod   int
	RecordSpan   int
	Total        float64
	Mean         float64
	Median       float64
	StdDev       float64
	Min          float64
	Max          float64
	Percentile90 float64
}

// Summarize computes descriptive statistics of the series values.
func Summarize(series []Observation) (SeriesSummary, error) {
	if len(series) == 0 {
		return SeriesSummary{}, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	values := make(stats.Float64Data, len(series))
	first, last := series[0].Period, series[0].Period
	for i, o := range series {
		values[i] = o.Value
		first = min(first, o.Period)
		last = max(last, o.Period)
	}

	s := SeriesSummary{
		Count:       len(series),
		FirstPeriod: first,
		LastPeriod:  last,
		RecordSpan:  last - first,
	}
	var err error
	if s.Total, err = values.Sum(); err != nil {
		return SeriesSummary{}, fmt.Errorf("summarize sum: %w", err)
	}
	if s.Mean, err = values.Mean(); err != nil {
		return SeriesSummary{}, fmt.Errorf("summarize mean: %w", err)
	}
	if s.Median, err = values.Median(); err != nil {
		return SeriesSummary{}, fmt.Errorf("summarize median: %w", err)
	}
	// Sample deviation is undefined for one value; leave it at zero.
	if len(series) > 1 {
		if s.StdDev, err = values.StandardDeviationSample(); err != nil {
			return SeriesSummary{}, fmt.Errorf("summarize stddev: %w", err)
		}
	}
	if s.Min, err = values.Min(); err != nil {
		return SeriesSummary{}, fmt.Errorf("summarize min: %w", err)
	}
	if s.Max, err = values.Max(); err != nil {
		return SeriesSummary{}, fmt.Errorf("summarize max: %w", err)
	}
	if s.Percentile90, err = values.Percentile(90); err != nil {
		return SeriesSummary{}, fmt.Errorf("summarize percentile: %w", err)
	}
	return s, nil
}

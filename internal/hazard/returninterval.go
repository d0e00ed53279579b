package hazard

import (
	"fmt"
	"math"
	"sort"
)

// Observation is one aggregation period (normally a calendar year) and the
// aggregate loss recorded for it.
type Observation struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// RankedObservation is an Observation annotated with its plotting-position
// rank and empirical return interval. Both fields are derived from the full
// series passed to EstimateReturnIntervals and are never edited in place.
type RankedObservation struct {
	Observation
	Rank           float64 `json:"rank"`
	ReturnInterval float64 `json:"return_interval"`
}

// TiePolicy selects how observations with identical values are ranked.
type TiePolicy int

const (
	// TieAverage gives tied values the mean of the ranks they would occupy,
	// so two values tied for second place both receive rank 2.5.
	TieAverage TiePolicy = iota
	// TieFirst ranks tied values in the order they appear in the input.
	TieFirst
)

// String returns the configuration name of the policy.
func (p TiePolicy) String() string {
	switch p {
	case TieAverage:
		return "average"
	case TieFirst:
		return "first"
	default:
		return fmt.Sprintf("TiePolicy(%d)", int(p))
	}
}

// ParseTiePolicy maps a configuration name to a TiePolicy.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch s {
	case "average", "":
		return TieAverage, nil
	case "first":
		return TieFirst, nil
	default:
		return 0, fmt.Errorf("unknown tie policy %q", s)
	}
}

// RecordSpan returns max(period) - min(period) over the series.
func RecordSpan(obs []Observation) int {
	if len(obs) == 0 {
		return 0
	}
	lo, hi := obs[0].Period, obs[0].Period
	for _, o := range obs[1:] {
		lo = min(lo, o.Period)
		hi = max(hi, o.Period)
	}
	return hi - lo
}

// EstimateReturnIntervals ranks the series by value (rank 1 is the largest
// loss) and assigns each period the plotting-position return interval
// (record_span + 1) / rank. The span is taken over the whole input, so a
// filtered subset must be passed in on its own to get subset-consistent
// intervals. The result is in input order; obs is not modified.
func EstimateReturnIntervals(obs []Observation, ties TiePolicy) ([]RankedObservation, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	for _, o := range obs {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) || o.Value < 0 {
			return nil, fmt.Errorf("%w: period %d has value %v", ErrInvalidObservation, o.Period, o.Value)
		}
	}

	span := RecordSpan(obs)
	if span == 0 {
		return nil, fmt.Errorf("%w: %d observation(s) cover a single period", ErrInsufficientData, len(obs))
	}

	ranks := rankDescending(obs, ties)
	out := make([]RankedObservation, len(obs))
	for i, o := range obs {
		out[i] = RankedObservation{
			Observation:    o,
			Rank:           ranks[i],
			ReturnInterval: float64(span+1) / ranks[i],
		}
	}
	return out, nil
}

// rankDescending returns the 1-based descending rank of each observation,
// indexed like obs.
func rankDescending(obs []Observation, ties TiePolicy) []float64 {
	order := make([]int, len(obs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return obs[order[i]].Value > obs[order[j]].Value
	})

	ranks := make([]float64, len(obs))
	if ties == TieFirst {
		for pos, idx := range order {
			ranks[idx] = float64(pos + 1)
		}
		return ranks
	}

	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && obs[order[end]].Value == obs[order[start]].Value {
			end++
		}
		// Positions start..end-1 hold ranks start+1..end.
		shared := float64(start+1+end) / 2
		for _, idx := range order[start:end] {
			ranks[idx] = shared
		}
		start = end
	}
	return ranks
}

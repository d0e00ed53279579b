package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-claims-risk/internal/hazard"
)

// DefaultExcludedEvents are single events large enough to dominate a
// state's record. Hurricane Hugo alone outweighs decades of other losses.
var DefaultExcludedEvents = []string{"Hurricane 1989 Hugo"}

// excludedHazards are perils outside the climate-loss model.
var excludedHazards = []string{"Landslide"}

// ClaimFilter selects the claims entering an analysis.
type ClaimFilter struct {
	// Category keeps only one hazard category; empty keeps all of them.
	Category HazardCategory
	// ExcludeEvents drops claims whose EventName matches exactly.
	ExcludeEvents []string
}

// FilterClaims drops landslides, zero-damage rows and excluded events, then
// applies the category filter. The input is not modified.
func FilterClaims(claims []Claim, f ClaimFilter) []Claim {
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if slices.Contains(excludedHazards, c.Hazard) {
			continue
		}
		if c.PropertyDamage <= 0 {
			continue
		}
		if slices.Contains(f.ExcludeEvents, c.EventName) {
			continue
		}
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LossMetric selects which damage column an annual series sums.
type LossMetric string

const (
	// MetricTotal sums adjusted property damage in millions of dollars.
	MetricTotal LossMetric = "total"
	// MetricPerCapita sums adjusted property damage per capita in dollars.
	MetricPerCapita LossMetric = "per_capita"
)

// ParseLossMetric validates a configured metric name.
func ParseLossMetric(s string) (LossMetric, error) {
	switch m := LossMetric(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MetricTotal:
		return MetricTotal, nil
	case MetricPerCapita:
		return MetricPerCapita, nil
	default:
		return "", fmt.Errorf("unknown loss metric %q", s)
	}
}

// Unit is the unit of the values AnnualSeries produces for this metric.
func (m LossMetric) Unit() string {
	if m == MetricPerCapita {
		return "USD per capita"
	}
	return "USD millions"
}

// AnnualSeries sums the chosen metric per year, sorted by year. Years in
// excludeYears are removed after aggregation; years with no claims do not
// appear at all.
func AnnualSeries(claims []Claim, metric LossMetric, excludeYears []int) []hazard.Observation {
	totals := make(map[int]float64)
	for _, c := range claims {
		switch metric {
		case MetricPerCapita:
			totals[c.Year] += c.PropertyDamagePerCapita
		default:
			totals[c.Year] += c.PropertyDamage / 1e6
		}
	}

	series := make([]hazard.Observation, 0, len(totals))
	for year, v := range totals {
		if slices.Contains(excludeYears, year) {
			continue
		}
		series = append(series, hazard.Observation{Period: year, Value: v})
	}
	slices.SortFunc(series, func(a, b hazard.Observation) int { return cmp.Compare(a.Period, b.Period) })
	return series
}

// EventLoss is one named event's share of all claim dollars.
type EventLoss struct {
	EventName       string  `json:"event_name"`
	MillionsDollars float64 `json:"millions_dollars"`
	PercentOfTotal  float64 `json:"percent_of_total"`
}

// WorstEvents groups claims by event name and returns the n largest by
// total adjusted damage. n <= 0 returns every event.
func WorstEvents(claims []Claim, n int) []EventLoss {
	byEvent := make(map[string]float64)
	var total float64
	for _, c := range claims {
		byEvent[c.EventName] += c.PropertyDamage
		total += c.PropertyDamage
	}

	events := make([]EventLoss, 0, len(byEvent))
	for name, dmg := range byEvent {
		e := EventLoss{EventName: name, MillionsDollars: dmg / 1e6}
		if total > 0 {
			e.PercentOfTotal = dmg / total * 100
		}
		events = append(events, e)
	}
	slices.SortFunc(events, func(a, b EventLoss) int {
		if c := cmp.Compare(b.MillionsDollars, a.MillionsDollars); c != 0 {
			return c
		}
		return strings.Compare(a.EventName, b.EventName)
	})
	if n > 0 && len(events) > n {
		events = events[:n]
	}
	return events
}

// CategoryShare is one hazard category's share of all claim dollars.
type CategoryShare struct {
	Category        HazardCategory `json:"category"`
	Claims          int            `json:"claims"`
	MillionsDollars float64        `json:"millions_dollars"`
	PercentOfTotal  float64        `json:"percent_of_total"`
}

// CategoryShares reports every category in HazardCategories order,
// including those with no claims.
func CategoryShares(claims []Claim) []CategoryShare {
	counts := make(map[HazardCategory]int)
	sums := make(map[HazardCategory]float64)
	var total float64
	for _, c := range claims {
		counts[c.Category]++
		sums[c.Category] += c.PropertyDamage
		total += c.PropertyDamage
	}

	shares := make([]CategoryShare, len(HazardCategories))
	for i, cat := range HazardCategories {
		shares[i] = CategoryShare{
			Category:        cat,
			Claims:          counts[cat],
			MillionsDollars: sums[cat] / 1e6,
		}
		if total > 0 {
			shares[i].PercentOfTotal = sums[cat] / total * 100
		}
	}
	return shares
}

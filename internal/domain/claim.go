package domain

import (
	"strings"
	"time"
)

// RawClaimRecord represents one SHELDUS export row as flat JSON, the shape
// published to the claims topic and produced by the file loaders. Every
// column is kept as text; ParseClaim does the conversion.
type RawClaimRecord struct {
	Hazard               string `json:"Hazard"`
	Year                 string `json:"Year"`
	EventName            string `json:"EventName"`
	CountyName           string `json:"CountyName"`
	CountyFIPS           string `json:"County_FIPS"`
	PropertyDmgAdj       string `json:"PropertyDmg(ADJ)"` // inflation-adjusted dollars
	PropertyDmgPerCapita string `json:"PropertyDmgPerCapita"`
}

// RawEvent represents an unprocessed message from the claims topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// HazardCategory is the broad peril class a SHELDUS hazard string maps to.
type HazardCategory string

const (
	CategoryDroughtHeatWildfire HazardCategory = "Drought/Heat/Wildfire"
	CategoryHurricane           HazardCategory = "Hurricane/TropicalStorm"
	CategoryGeneralStorm        HazardCategory = "GeneralStorm"
	CategoryWinterWeather       HazardCategory = "WinterWeather"
	CategoryUnclassified        HazardCategory = "Unclassified"
)

// HazardCategories lists every category in reporting order.
var HazardCategories = []HazardCategory{
	CategoryDroughtHeatWildfire,
	CategoryHurricane,
	CategoryGeneralStorm,
	CategoryWinterWeather,
	CategoryUnclassified,
}

// categoryRules is evaluated top to bottom; the first rule with a matching
// keyword wins. SHELDUS combines perils in one field
// ("Flooding/Severe Storm/Thunder Storm"), so order decides ties.
var categoryRules = []struct {
	category HazardCategory
	keywords []string
}{
	{CategoryDroughtHeatWildfire, []string{"Heat", "Drought", "Wildfire"}},
	{CategoryHurricane, []string{"Hurricane", "Tropical Storm"}},
	{CategoryGeneralStorm, []string{"Tornado", "Severe Storm", "Thunder Storm", "Hail", "Wind", "Flooding", "Lightning"}},
	{CategoryWinterWeather, []string{"Winter Weather"}},
}

// ClassifyHazard maps a SHELDUS hazard string to its broad category.
// Matching is case-sensitive substring search, as SHELDUS capitalizes
// peril names consistently.
func ClassifyHazard(hazard string) HazardCategory {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(hazard, kw) {
				return rule.category
			}
		}
	}
	return CategoryUnclassified
}

// ParseHazardCategory resolves a configured category name. Matching ignores
// case; the empty string means "all categories" and returns ok == true with
// an empty category.
func ParseHazardCategory(s string) (HazardCategory, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return "", true
	}
	for _, c := range HazardCategories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Claim is a parsed, classified SHELDUS row.
type Claim struct {
	Year       int            `json:"year"`
	EventName  string         `json:"event_name"`
	Hazard     string         `json:"hazard"`
	Category   HazardCategory `json:"category"`
	CountyName string         `json:"county_name,omitempty"`
	CountyFIPS string         `json:"county_fips,omitempty"`

	// PropertyDamage is inflation-adjusted property damage in dollars.
	PropertyDamage          float64 `json:"property_damage"`
	PropertyDamagePerCapita float64 `json:"property_damage_per_capita"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Package domain models SHELDUS county-level disaster loss records and the
// reports built from them.
//
// # Data Source
//
// Claims come from SHELDUS (Spatial Hazard Events and Losses Database for
// the United States) exports for a single state, one row per county, event
// and hazard. Rows arrive either from a .csv/.xlsx export on disk or as flat
// JSON on the claims topic, where each JSON key is the SHELDUS column name.
//
// # SHELDUS Conventions
//
// Column names:
//
//	Some exports prefix headers with a space (" Hazard", " CountyName").
//	Loaders trim headers before matching them to RawClaimRecord fields.
//
// Hazard strings combine perils with slashes, e.g.
// "Flooding/Severe Storm/Thunder Storm". [ClassifyHazard] maps them to five
// broad categories by keyword, checked in this order:
//
//	Drought/Heat/Wildfire:    Heat, Drought, Wildfire
//	Hurricane/TropicalStorm:  Hurricane, Tropical Storm
//	GeneralStorm:             Tornado, Severe Storm, Thunder Storm, Hail,
//	                          Wind, Flooding, Lightning
//	WinterWeather:            Winter Weather
//	Unclassified:             everything else (e.g. Fog)
//
// Amounts:
//
//	PropertyDmg(ADJ) is property damage in dollars adjusted to the export's
//	reference year. PropertyDmgPerCapita divides it by county population.
//	Annual totals are reported in millions of dollars.
//
// # Filtering
//
// Landslides are geologic rather than climatic and are always dropped, as
// are rows with zero damage. Named outlier events (by default Hurricane
// Hugo, 1989) can be excluded because a single event of that size
// dominates the fit of an entire record.
//
// # Report IDs
//
// Report IDs are SHA-1 name-based UUIDs of the report scope and generation
// time, so replaying a run with a frozen clock reproduces the same ID.
package domain

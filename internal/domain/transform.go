package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidClaim marks a SHELDUS row that cannot be turned into a Claim.
// Callers skip such rows and count them rather than failing the run.
var ErrInvalidClaim = errors.New("invalid claim")

// DecodeRawEvent deserializes a claims-topic message into a RawClaimRecord.
func DecodeRawEvent(raw RawEvent) (RawClaimRecord, error) {
	var rec RawClaimRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return RawClaimRecord{}, fmt.Errorf("decode claim at %s/%d/%d: %w", raw.Topic, raw.Partition, raw.Offset, err)
	}
	return rec, nil
}

// ParseClaim converts a raw SHELDUS row into a classified Claim.
// Text fields are trimmed, amounts may carry thousands separators or a
// leading dollar sign, and an empty per-capita column reads as zero.
func ParseClaim(rec RawClaimRecord) (Claim, error) {
	year, err := parseYear(rec.Year)
	if err != nil {
		return Claim{}, err
	}
	damage, err := parseAmount(rec.PropertyDmgAdj)
	if err != nil {
		return Claim{}, fmt.Errorf("%w: PropertyDmg(ADJ) %q", ErrInvalidClaim, rec.PropertyDmgAdj)
	}
	perCapita, err := parseAmount(rec.PropertyDmgPerCapita)
	if err != nil {
		return Claim{}, fmt.Errorf("%w: PropertyDmgPerCapita %q", ErrInvalidClaim, rec.PropertyDmgPerCapita)
	}

	hazard := strings.TrimSpace(rec.Hazard)
	return Claim{
		Year:                    year,
		EventName:               strings.TrimSpace(rec.EventName),
		Hazard:                  hazard,
		Category:                ClassifyHazard(hazard),
		CountyName:              strings.TrimSpace(rec.CountyName),
		CountyFIPS:              normalizeFIPS(rec.CountyFIPS),
		PropertyDamage:          damage,
		PropertyDamagePerCapita: perCapita,
	}, nil
}

// parseYear accepts a four-digit year, tolerating a trailing ".0" left by
// spreadsheet exports.
func parseYear(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	year, err := strconv.Atoi(s)
	if err != nil || year < 1000 || year > 9999 {
		return 0, fmt.Errorf("%w: Year %q", ErrInvalidClaim, s)
	}
	return year, nil
}

// parseAmount parses a dollar amount. Empty means zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("amount %v out of range", v)
	}
	return v, nil
}

// normalizeFIPS strips the quote prefix SHELDUS uses to keep leading zeros
// in spreadsheets ('45001) and any surrounding whitespace.
func normalizeFIPS(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "'")
}

package hazard

import (
	"fmt"
	"math"
)

// LogBase is the logarithm used by the damage-vs-return-interval model.
// The coefficients of a FitResult are only meaningful relative to the base
// they were fitted with, so one base is carried through fitting, inversion,
// confidence bands and residuals.
type LogBase int

const (
	// LogNatural fits value = a·ln(RI) + b.
	LogNatural LogBase = iota
	// Log10 fits value = a·log10(RI) + b.
	Log10
)

// String returns the configuration name of the base.
func (b LogBase) String() string {
	switch b {
	case LogNatural:
		return "ln"
	case Log10:
		return "log10"
	default:
		return fmt.Sprintf("LogBase(%d)", int(b))
	}
}

// ParseLogBase maps a configuration name to a LogBase.
func ParseLogBase(s string) (LogBase, error) {
	switch s {
	case "ln", "e", "natural", "":
		return LogNatural, nil
	case "log10", "10":
		return Log10, nil
	default:
		return 0, fmt.Errorf("unknown log base %q", s)
	}
}

// Log returns the logarithm of x in base b.
func (b LogBase) Log(x float64) float64 {
	if b == Log10 {
		return math.Log10(x)
	}
	return math.Log(x)
}

// Pow is the inverse of Log.
func (b LogBase) Pow(y float64) float64 {
	if b == Log10 {
		return math.Pow(10, y)
	}
	return math.Exp(y)
}

// MarshalText implements encoding.TextMarshaler.
func (b LogBase) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *LogBase) UnmarshalText(text []byte) error {
	v, err := ParseLogBase(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-claims-risk/internal/hazard"
)

// reportNamespace seeds deterministic report IDs.
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("storm-claims-risk/report"))

// Branch status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ReportScope records the settings a report was produced with. Its Key
// identifies the analysis independent of when it ran.
type ReportScope struct {
	Category        HazardCategory `json:"category,omitempty"`
	Metric          LossMetric     `json:"metric"`
	Unit            string         `json:"unit"`
	ExcludedEvents  []string       `json:"excluded_events,omitempty"`
	ExcludedYears   []int          `json:"excluded_years,omitempty"`
	SplitYear       int            `json:"split_year"`
	LogBase         string         `json:"log_base"`
	TiePolicy       string         `json:"tie_policy"`
	HorizonYears    float64        `json:"horizon_years"`
	ConfidenceLevel float64        `json:"confidence_level"`
}

// Key is a stable identifier for the scope, used as the sink message key.
func (s ReportScope) Key() string {
	category := string(s.Category)
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("category=%s|metric=%s|split=%d|base=%s", category, s.Metric, s.SplitYear, s.LogBase)
}

// Report is the published result of one analysis run.
type Report struct {
	ID          string      `json:"id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Scope       ReportScope `json:"scope"`

	ClaimsRead    int `json:"claims_read"`
	ClaimsSkipped int `json:"claims_skipped"`
	ClaimsUsed    int `json:"claims_used"`

	Branches       []BranchReport  `json:"branches"`
	EpochChange    *EpochView      `json:"epoch_change,omitempty"`
	WorstEvents    []EventLoss     `json:"worst_events,omitempty"`
	CategoryShares []CategoryShare `json:"category_shares,omitempty"`
}

// NewReport stamps a report with the current time and a deterministic ID
// derived from its scope and timestamp.
func NewReport(scope ReportScope, branches []BranchReport) Report {
	now := clock.Now().UTC()
	name := scope.Key() + "|" + now.Format(time.RFC3339Nano)
	return Report{
		ID:          uuid.NewSHA1(reportNamespace, []byte(name)).String(),
		GeneratedAt: now,
		Scope:       scope,
		Branches:    branches,
	}
}

// Branch returns the named branch, if present.
func (r Report) Branch(name string) (BranchReport, bool) {
	for _, b := range r.Branches {
		if b.Name == name {
			return b, true
		}
	}
	return BranchReport{}, false
}

// FailedBranches counts branches whose analysis did not complete.
func (r Report) FailedBranches() int {
	var n int
	for _, b := range r.Branches {
		if b.Status == StatusFailed {
			n++
		}
	}
	return n
}

// BranchReport is the JSON-safe view of one hazard.Analysis, or the reason
// it could not be produced.
type BranchReport struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	Summary    *SummaryView               `json:"summary,omitempty"`
	Series     []hazard.RankedObservation `json:"series,omitempty"`
	Fit        *FitView                   `json:"fit,omitempty"`
	Band       *BandView                  `json:"band,omitempty"`
	Residuals  []ResidualView             `json:"residuals,omitempty"`
	Exceedance *ExceedanceView            `json:"exceedance,omitempty"`
}

// SummaryView mirrors hazard.SeriesSummary.
type SummaryView struct {
	Count        int     `json:"count"`
	FirstPeriod  int     `json:"first_period"`
	LastPeriod   int     `json:"last_period"`
	RecordSpan   int     `json:"record_span"`
	Total        float64 `json:"total"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile90 float64 `json:"p90"`
}

// FitView mirrors hazard.FitResult. Quantities that can be infinite (two
// point fits have no residual degrees of freedom) are null when not finite.
type FitView struct {
	A                float64        `json:"a"`
	B                float64        `json:"b"`
	Base             string         `json:"base"`
	Covariance       [2][2]*float64 `json:"covariance"`
	StdErrA          *float64       `json:"std_err_a"`
	StdErrB          *float64       `json:"std_err_b"`
	N                int            `json:"n"`
	DegreesOfFreedom int            `json:"dof"`
	SSR              float64        `json:"ssr"`
	RSquared         *float64       `json:"r_squared"`
}

// CurvePoint is the fitted value and band at one return interval.
type CurvePoint struct {
	ReturnInterval float64  `json:"ri"`
	Fitted         float64  `json:"fitted"`
	Lower          *float64 `json:"lower"`
	Upper          *float64 `json:"upper"`
}

// BandView is the fitted curve with its confidence band.
type BandView struct {
	Level  float64      `json:"level"`
	Z      float64      `json:"z"`
	Points []CurvePoint `json:"points"`
}

// ResidualView mirrors hazard.Residual; Residual is null when either side
// of the log difference is not positive.
type ResidualView struct {
	Period         int      `json:"period"`
	ReturnInterval float64  `json:"ri"`
	Observed       float64  `json:"observed"`
	Fitted         float64  `json:"fitted"`
	Residual       *float64 `json:"residual"`
	Reliable       bool     `json:"reliable"`
}

// ThresholdView is one loss threshold; ReturnInterval is null when the
// threshold lies beyond anything the curve can reach.
type ThresholdView struct {
	Threshold      float64  `json:"threshold"`
	ReturnInterval *float64 `json:"ri"`
	Lambda         float64  `json:"lambda"`
	AtLeastOnce    float64  `json:"p_at_least_once"`
}

// ProbabilityView is P(exactly K exceedances of Threshold).
type ProbabilityView struct {
	Threshold   float64 `json:"threshold"`
	K           int     `json:"k"`
	Probability float64 `json:"p"`
}

// ExceedanceView mirrors hazard.ExceedanceTable.
type ExceedanceView struct {
	HorizonYears float64           `json:"horizon_years"`
	Thresholds   []ThresholdView   `json:"thresholds"`
	Rows         []ProbabilityView `json:"rows"`
}

// EpochView reports whether the loss curve moved between the two epochs.
type EpochView struct {
	Before         string   `json:"before"`
	After          string   `json:"after"`
	SlopeDelta     float64  `json:"slope_delta"`
	InterceptDelta float64  `json:"intercept_delta"`
	SlopeZ         *float64 `json:"slope_z"`
	SlopePValue    float64  `json:"slope_p_value"`
}

// NewBranchReport converts a completed analysis into its report form.
func NewBranchReport(name string, a hazard.Analysis) BranchReport {
	fit := a.Fit
	br := BranchReport{
		Name:   name,
		Status: StatusOK,
		Summary: &SummaryView{
			Count:        a.Summary.Count,
			FirstPeriod:  a.Summary.FirstPeriod,
			LastPeriod:   a.Summary.LastPeriod,
			RecordSpan:   a.Summary.RecordSpan,
			Total:        a.Summary.Total,
			Mean:         a.Summary.Mean,
			Median:       a.Summary.Median,
			StdDev:       a.Summary.StdDev,
			Min:          a.Summary.Min,
			Max:          a.Summary.Max,
			Percentile90: a.Summary.Percentile90,
		},
		Series: a.Ranked,
		Fit: &FitView{
			A:    fit.A,
			B:    fit.B,
			Base: fit.Base.String(),
			Covariance: [2][2]*float64{
				{finite(fit.Covariance[0][0]), finite(fit.Covariance[0][1])},
				{finite(fit.Covariance[1][0]), finite(fit.Covariance[1][1])},
			},
			StdErrA:          finite(fit.StdErrA()),
			StdErrB:          finite(fit.StdErrB()),
			N:                fit.N,
			DegreesOfFreedom: fit.DegreesOfFreedom,
			SSR:              fit.SSR,
			RSquared:         finite(fit.RSquared),
		},
		Band: &BandView{
			Level:  a.Band.Level,
			Z:      a.Band.Z,
			Points: make([]CurvePoint, len(fit.Domain)),
		},
		Residuals: make([]ResidualView, len(a.Residuals)),
		Exceedance: &ExceedanceView{
			HorizonYears: a.Exceedance.HorizonYears,
			Thresholds:   make([]ThresholdView, len(a.Exceedance.Thresholds)),
			Rows:         make([]ProbabilityView, len(a.Exceedance.Rows)),
		},
	}

	for i, x := range fit.Domain {
		br.Band.Points[i] = CurvePoint{
			ReturnInterval: x,
			Fitted:         fit.Curve[i],
			Lower:          finite(a.Band.Lower[i]),
			Upper:          finite(a.Band.Upper[i]),
		}
	}
	for i, r := range a.Residuals {
		br.Residuals[i] = ResidualView{
			Period:         r.Period,
			ReturnInterval: r.ReturnInterval,
			Observed:       r.Observed,
			Fitted:         r.Fitted,
			Residual:       finite(r.Residual),
			Reliable:       r.Reliable,
		}
	}
	for i, t := range a.Exceedance.Thresholds {
		br.Exceedance.Thresholds[i] = ThresholdView{
			Threshold:      t.Threshold,
			ReturnInterval: finite(t.ReturnInterval),
			Lambda:         t.Lambda,
			AtLeastOnce:    t.AtLeastOnce,
		}
	}
	for i, row := range a.Exceedance.Rows {
		br.Exceedance.Rows[i] = ProbabilityView{Threshold: row.Threshold, K: row.K, Probability: row.Probability}
	}
	return br
}

// FailedBranch records why a branch produced no analysis.
func FailedBranch(name string, err error) BranchReport {
	return BranchReport{
		Name:      name,
		Status:    StatusFailed,
		Error:     err.Error(),
		ErrorKind: ErrorKind(err),
	}
}

// NewEpochView converts an epoch comparison into its report form.
func NewEpochView(before, after string, cmp hazard.EpochComparison) *EpochView {
	return &EpochView{
		Before:         before,
		After:          after,
		SlopeDelta:     cmp.SlopeDelta,
		InterceptDelta: cmp.InterceptDelta,
		SlopeZ:         finite(cmp.SlopeZ),
		SlopePValue:    cmp.SlopePValue,
	}
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{hazard.ErrInsufficientData, "insufficient_data"},
	{hazard.ErrInvalidObservation, "invalid_observation"},
	{hazard.ErrFitDivergence, "fit_divergence"},
	{hazard.ErrInvalidDomain, "invalid_domain"},
	{hazard.ErrInvalidThreshold, "invalid_threshold"},
	{hazard.ErrInvalidHorizon, "invalid_horizon"},
	{hazard.ErrInvalidKRange, "invalid_k_range"},
	{hazard.ErrNumericOverflow, "numeric_overflow"},
	{ErrInvalidClaim, "invalid_claim"},
}

// ErrorKind maps an analysis error to a short machine-readable label, used
// in reports and as a metric label.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// SerializeReport encodes a report for the sink topic, keyed by its scope so
// compacted topics keep the latest report per analysis.
func SerializeReport(r Report) (OutputEvent, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize report: %w", err)
	}
	names := make([]string, len(r.Branches))
	for i, b := range r.Branches {
		names[i] = b.Name
	}
	return OutputEvent{
		Key:   []byte(r.Scope.Key()),
		Value: data,
		Headers: map[string]string{
			"report_id":       r.ID,
			"generated_at":    r.GeneratedAt.Format(time.RFC3339),
			"branches":        strings.Join(names, ","),
			"branches_failed": strconv.Itoa(r.FailedBranches()),
			"content_type":    "application/json",
		},
	}, nil
}

// finite returns nil for NaN and ±Inf so the value encodes as JSON null.
func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

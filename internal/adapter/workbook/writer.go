// Package workbook renders reports as .xlsx workbooks.
package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
)

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetFit        = "Fit"
	SheetBand       = "Band"
	SheetResiduals  = "Residuals"
	SheetExceedance = "Exceedance"
	SheetEvents     = "Worst Events"
	SheetCategories = "Categories"
)

// Writer overwrites a workbook file with each report it receives.
// It implements pipeline.Loader.
type Writer struct {
	path   string
	logger *slog.Logger
}

func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Load renders report and replaces the workbook. The file is written to a
// temporary name first and renamed, so readers never see a partial file.
func (w *Writer) Load(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := Render(report)
	if err != nil {
		return err
	}
	defer f.Close()

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".report-*.xlsx")
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}

	w.logger.Debug("workbook written", "path", w.path, "report_id", report.ID)
	return nil
}

// Render lays the report out as a workbook. The caller closes the file.
func Render(report domain.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetFit, SheetBand, SheetResiduals, SheetExceedance, SheetEvents, SheetCategories} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	s := &sheetWriter{f: f}
	writeSummary(s, report)
	writeFit(s, report)
	writeBand(s, report)
	writeResiduals(s, report)
	writeExceedance(s, report)
	writeEvents(s, report)
	writeCategories(s, report)
	if s.err != nil {
		f.Close()
		return nil, fmt.Errorf("render workbook: %w", s.err)
	}
	return f, nil
}

// sheetWriter appends rows to sheets and keeps the first error.
type sheetWriter struct {
	f    *excelize.File
	next map[string]int
	err  error
}

func (s *sheetWriter) row(sheet string, values ...any) {
	if s.err != nil {
		return
	}
	if s.next == nil {
		s.next = make(map[string]int)
	}
	s.next[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, s.next[sheet])
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(sheet, cell, &values)
}

// opt writes null view values as empty cells.
func opt(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func writeSummary(s *sheetWriter, r domain.Report) {
	category := string(r.Scope.Category)
	if category == "" {
		category = "all"
	}
	s.row(SheetSummary, "Report ID", r.ID)
	s.row(SheetSummary, "Generated at", r.GeneratedAt.UTC().Format(time.RFC3339))
	s.row(SheetSummary, "Category", category)
	s.row(SheetSummary, "Metric", string(r.Scope.Metric))
	s.row(SheetSummary, "Unit", r.Scope.Unit)
	s.row(SheetSummary, "Log base", r.Scope.LogBase)
	s.row(SheetSummary, "Epoch split year", r.Scope.SplitYear)
	s.row(SheetSummary, "Horizon (years)", r.Scope.HorizonYears)
	s.row(SheetSummary, "Claims read", r.ClaimsRead)
	s.row(SheetSummary, "Claims skipped", r.ClaimsSkipped)
	s.row(SheetSummary, "Claims used", r.ClaimsUsed)
	s.row(SheetSummary)

	s.row(SheetSummary, "Branch", "Status", "Error", "Years", "First", "Last", "Span", "Total", "Mean", "Median", "Std dev", "Max")
	for _, b := range r.Branches {
		if b.Summary == nil {
			s.row(SheetSummary, b.Name, b.Status, b.Error)
			continue
		}
		sm := b.Summary
		s.row(SheetSummary, b.Name, b.Status, b.Error, sm.Count, sm.FirstPeriod, sm.LastPeriod, sm.RecordSpan,
			sm.Total, sm.Mean, sm.Median, sm.StdDev, sm.Max)
	}

	if e := r.EpochChange; e != nil {
		s.row(SheetSummary)
		s.row(SheetSummary, "Epoch change", e.Before+" -> "+e.After)
		s.row(SheetSummary, "Slope delta", e.SlopeDelta)
		s.row(SheetSummary, "Intercept delta", e.InterceptDelta)
		s.row(SheetSummary, "Slope z", opt(e.SlopeZ))
		s.row(SheetSummary, "Slope p-value", e.SlopePValue)
	}
}

func writeFit(s *sheetWriter, r domain.Report) {
	s.row(SheetFit, "Branch", "a", "b", "SE a", "SE b", "Cov(a,b)", "R²", "n", "dof", "SSR")
	for _, b := range r.Branches {
		if b.Fit == nil {
			continue
		}
		fit := b.Fit
		s.row(SheetFit, b.Name, fit.A, fit.B, opt(fit.StdErrA), opt(fit.StdErrB), opt(fit.Covariance[0][1]),
			opt(fit.RSquared), fit.N, fit.DegreesOfFreedom, fit.SSR)
	}
}

func writeBand(s *sheetWriter, r domain.Report) {
	s.row(SheetBand, "Branch", "Level", "Return interval", "Fitted", "Lower", "Upper")
	for _, b := range r.Branches {
		if b.Band == nil {
			continue
		}
		for _, p := range b.Band.Points {
			s.row(SheetBand, b.Name, b.Band.Level, p.ReturnInterval, p.Fitted, opt(p.Lower), opt(p.Upper))
		}
	}
}

func writeResiduals(s *sheetWriter, r domain.Report) {
	s.row(SheetResiduals, "Branch", "Year", "Return interval", "Observed", "Fitted", "Log residual", "Reliable")
	for _, b := range r.Branches {
		for _, res := range b.Residuals {
			s.row(SheetResiduals, b.Name, res.Period, res.ReturnInterval, res.Observed, res.Fitted, opt(res.Residual), res.Reliable)
		}
	}
}

func writeExceedance(s *sheetWriter, r domain.Report) {
	s.row(SheetExceedance, "Branch", "Threshold", "Return interval", "Lambda", "P(at least once)")
	for _, b := range r.Branches {
		if b.Exceedance == nil {
			continue
		}
		for _, th := range b.Exceedance.Thresholds {
			s.row(SheetExceedance, b.Name, th.Threshold, opt(th.ReturnInterval), th.Lambda, th.AtLeastOnce)
		}
	}
	s.row(SheetExceedance)
	s.row(SheetExceedance, "Branch", "Threshold", "K", "P(exactly K)")
	for _, b := range r.Branches {
		if b.Exceedance == nil {
			continue
		}
		for _, p := range b.Exceedance.Rows {
			s.row(SheetExceedance, b.Name, p.Threshold, p.K, p.Probability)
		}
	}
}

func writeEvents(s *sheetWriter, r domain.Report) {
	s.row(SheetEvents, "Event", "USD millions", "% of total")
	for _, e := range r.WorstEvents {
		s.row(SheetEvents, e.EventName, e.MillionsDollars, e.PercentOfTotal)
	}
}

func writeCategories(s *sheetWriter, r domain.Report) {
	s.row(SheetCategories, "Category", "Claims", "USD millions", "% of total")
	for _, c := range r.CategoryShares {
		s.row(SheetCategories, string(c.Category), c.Claims, c.MillionsDollars, c.PercentOfTotal)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
	"github.com/couchcryptid/storm-claims-risk/internal/hazard"
	"github.com/couchcryptid/storm-claims-risk/internal/observability"
)

// BranchAll names the branch that models the full record.
const BranchAll = "all"

// Settings configures what an Analyzer models.
type Settings struct {
	Model        hazard.Model
	Filter       domain.ClaimFilter
	Metric       domain.LossMetric
	ExcludeYears []int
	SplitYear    int
	TopEvents    int
	// MaxParallel bounds concurrently analyzed branches. Zero or less means
	// one branch at a time.
	MaxParallel int
}

// BeforeBranch and FromBranch name the epoch branches for a split year.
func BeforeBranch(split int) string { return fmt.Sprintf("before_%d", split) }
func FromBranch(split int) string   { return fmt.Sprintf("from_%d", split) }

// Analyzer turns parsed claims into a report: the full record and the two
// epochs on either side of the split year are modelled independently.
type Analyzer struct {
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAnalyzer creates an Analyzer with the given settings and observability.
func NewAnalyzer(s Settings, logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{settings: s, logger: logger, metrics: metrics}
}

// Scope describes the analysis this Analyzer performs.
func (a *Analyzer) Scope() domain.ReportScope {
	s := a.settings
	return domain.ReportScope{
		Category:        s.Filter.Category,
		Metric:          s.Metric,
		Unit:            s.Metric.Unit(),
		ExcludedEvents:  s.Filter.ExcludeEvents,
		ExcludedYears:   s.ExcludeYears,
		SplitYear:       s.SplitYear,
		LogBase:         s.Model.Base.String(),
		TiePolicy:       s.Model.Ties.String(),
		HorizonYears:    s.Model.HorizonYears,
		ConfidenceLevel: s.Model.ConfidenceLevel,
	}
}

type branch struct {
	name   string
	series []hazard.Observation
}

// Analyze builds a report from claims. A branch that cannot be modelled is
// recorded as failed in the report; only cancellation of ctx is returned as
// an error.
func (a *Analyzer) Analyze(ctx context.Context, claims []domain.Claim) (domain.Report, error) {
	s := a.settings
	filtered := domain.FilterClaims(claims, s.Filter)
	series := domain.AnnualSeries(filtered, s.Metric, s.ExcludeYears)
	before, after := hazard.SplitEpochs(series, s.SplitYear)

	branches := []branch{
		{name: BranchAll, series: series},
		{name: BeforeBranch(s.SplitYear), series: before},
		{name: FromBranch(s.SplitYear), series: after},
	}

	analyses := make([]*hazard.Analysis, len(branches))
	reports := make([]domain.BranchReport, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.MaxParallel, 1))
	for i, b := range branches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analysis, err := s.Model.Analyze(b.series)
			if err != nil {
				err = fmt.Errorf("branch %s: %w", b.name, err)
				reports[i] = domain.FailedBranch(b.name, err)
				a.metrics.BranchFailures.WithLabelValues(b.name, reports[i].ErrorKind).Inc()
				a.logger.Warn("branch analysis failed",
					"branch", b.name,
					"periods", len(b.series),
					"error", err,
				)
				return nil
			}
			analyses[i] = &analysis
			reports[i] = domain.NewBranchReport(b.name, analysis)
			a.metrics.FitSlope.WithLabelValues(b.name).Set(analysis.Fit.A)
			a.metrics.FitRSquared.WithLabelValues(b.name).Set(analysis.Fit.RSquared)
			a.logger.Debug("branch analyzed",
				"branch", b.name,
				"periods", len(b.series),
				"a", analysis.Fit.A,
				"b", analysis.Fit.B,
				"r_squared", analysis.Fit.RSquared,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Report{}, err
	}

	report := domain.NewReport(a.Scope(), reports)
	report.ClaimsUsed = len(filtered)
	report.WorstEvents = domain.WorstEvents(filtered, s.TopEvents)
	// Shares are reported across every category, so the category filter
	// does not apply here.
	report.CategoryShares = domain.CategoryShares(domain.FilterClaims(claims, domain.ClaimFilter{ExcludeEvents: s.Filter.ExcludeEvents}))

	if analyses[1] != nil && analyses[2] != nil {
		cmp, err := hazard.CompareEpochs(analyses[1].Fit, analyses[2].Fit)
		if err == nil {
			report.EpochChange = domain.NewEpochView(branches[1].name, branches[2].name, cmp)
		}
	}
	return report, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
	"github.com/couchcryptid/storm-claims-risk/internal/observability"
)

// Extractor reads every claim record available for one run.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.RawClaimRecord, error)
}

// Loader delivers a report to a destination.
type Loader interface {
	Load(ctx context.Context, report domain.Report) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Options tune how often the pipeline runs.
type Options struct {
	// Interval between runs. Zero runs once and returns.
	Interval time.Duration
	// Clock drives the run ticker and retry backoff; nil uses real time.
	Clock clockwork.Clock
}

// Pipeline orchestrates the extract-analyze-load cycle.
type Pipeline struct {
	extractor Extractor
	analyzer  *Analyzer
	loader    Loader
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration

	ready  atomic.Bool
	latest atomic.Pointer[domain.Report]
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, a *Analyzer, l Loader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		extractor: e,
		analyzer:  a,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		interval:  opts.Interval,
	}
}

// CheckReadiness returns nil once a report has been published, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published a report yet")
	}
	return nil
}

// LatestReport returns the most recently published report.
func (p *Pipeline) LatestReport() (domain.Report, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run executes the pipeline until the context is cancelled. With a zero
// interval it returns after the first successful run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval, "scope", p.analyzer.Scope().Key())
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var ticks <-chan time.Time
	if p.interval > 0 {
		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()
		ticks = ticker.Chan()
	}

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff
	for {
		err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		if err != nil {
			p.logger.Error("run failed", "error", err, "retry_in", backoff)
			if !p.sleep(ctx, backoff) {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		if ticks == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticks:
		}
	}
}

// RunOnce performs a single extract-analyze-load cycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := p.clock.Now()

	records, err := p.extractor.Extract(ctx)
	if err != nil {
		p.metrics.RunErrors.WithLabelValues("extract").Inc()
		return fmt.Errorf("extract claims: %w", err)
	}
	p.metrics.ClaimsRead.Add(float64(len(records)))

	claims := p.parse(records)
	skipped := len(records) - len(claims)

	report, err := p.analyzer.Analyze(ctx, claims)
	if err != nil {
		p.metrics.RunErrors.WithLabelValues("analyze").Inc()
		return fmt.Errorf("analyze claims: %w", err)
	}
	report.ClaimsRead = len(records)
	report.ClaimsSkipped = skipped

	if err := p.loader.Load(ctx, report); err != nil {
		p.metrics.RunErrors.WithLabelValues("load").Inc()
		return fmt.Errorf("load report %s: %w", report.ID, err)
	}

	p.latest.Store(&report)
	p.ready.Store(true)
	p.metrics.ReportsPublished.Inc()
	p.metrics.LastRunSuccessful.Set(float64(report.GeneratedAt.Unix()))
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())

	p.logger.Info("report published",
		"report_id", report.ID,
		"claims_read", report.ClaimsRead,
		"claims_skipped", report.ClaimsSkipped,
		"claims_used", report.ClaimsUsed,
		"branches_failed", report.FailedBranches(),
	)
	return nil
}

// parse converts raw records into claims, skipping rows that do not parse.
func (p *Pipeline) parse(records []domain.RawClaimRecord) []domain.Claim {
	claims := make([]domain.Claim, 0, len(records))
	for i, rec := range records {
		claim, err := domain.ParseClaim(rec)
		if err != nil {
			p.logger.Warn("parse failed, skipping claim",
				"error", err,
				"row", i,
				"event_name", rec.EventName,
			)
			p.metrics.ClaimsSkipped.Inc()
			continue
		}
		claims = append(claims, claim)
	}
	return claims
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

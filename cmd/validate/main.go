// Command validate loads a SHELDUS claims export, runs the loss model over
// the full record and both epochs, and checks the model's invariants:
// ranks form a permutation, return intervals fall as losses fall, the fit
// inverts cleanly, the band encloses the curve and the Poisson masses sum
// to one. Model settings come from the same environment as the service.
//
// Usage:
//
//	go run ./cmd/validate -claims data/mock/sheldus_claims.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/storm-claims-risk/internal/adapter/sheldus"
	"github.com/couchcryptid/storm-claims-risk/internal/config"
	"github.com/couchcryptid/storm-claims-risk/internal/domain"
	"github.com/couchcryptid/storm-claims-risk/internal/hazard"
)

const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// branch is one modelled series.
type branch struct {
	name     string
	analysis hazard.Analysis
}

func main() {
	claimsPath := flag.String("claims", "", "path to a SHELDUS .csv or .xlsx export")
	sheet := flag.String("sheet", "", "worksheet of an .xlsx export (default: first)")
	flag.Parse()

	if *claimsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*claimsPath, *sheet); code != 0 {
		os.Exit(code)
	}
}

func run(claimsPath, sheet string) int {
	fmt.Println("=== Loss Model Invariant Validation ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	model, err := cfg.Model()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: model settings: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	records, err := sheldus.NewSource(claimsPath, sheet, logger).Extract(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load claims: %v\n", err)
		return 1
	}

	// ── Parse and model ──
	parsing := &phase{name: "Claims parse"}
	claims := make([]domain.Claim, 0, len(records))
	for i, rec := range records {
		c, err := domain.ParseClaim(rec)
		if err != nil {
			parsing.errorf("row %d: %v", i+2, err)
			continue
		}
		claims = append(claims, c)
	}

	filtered := domain.FilterClaims(claims, cfg.ClaimFilter())
	series := domain.AnnualSeries(filtered, cfg.LossMetric, cfg.ExcludeYears)
	before, after := hazard.SplitEpochs(series, cfg.EpochSplitYear)

	modelling := &phase{name: "Model runs"}
	var branches []branch
	for _, s := range []struct {
		name   string
		series []hazard.Observation
	}{
		{"all", series},
		{fmt.Sprintf("before_%d", cfg.EpochSplitYear), before},
		{fmt.Sprintf("from_%d", cfg.EpochSplitYear), after},
	} {
		a, err := model.Analyze(s.series)
		if err != nil {
			modelling.errorf("%s (%d years): %v", s.name, len(s.series), err)
			continue
		}
		branches = append(branches, branch{name: s.name, analysis: a})
	}

	// ── Run validation phases ──
	phases := []*phase{
		parsing,
		modelling,
		validateRanks(branches),
		validateReturnIntervals(branches),
		validateInversion(branches, cfg.Thresholds),
		validateBand(branches),
		validatePoissonMass(branches),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d read, %d parsed, %d after filtering, %d years\n",
		len(records), len(claims), len(filtered), len(series))
	for _, b := range branches {
		f := b.analysis.Fit
		fmt.Printf("  %-14s a=%-10.4f b=%-10.4f R²=%.4f n=%d\n", b.name, f.A, f.B, f.RSquared, f.N)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

// validateRanks checks that ranks sum to n(n+1)/2 and lie in [1, n], which
// holds for both tie policies.
func validateRanks(branches []branch) *phase {
	p := &phase{name: "Ranks form a permutation"}
	for _, b := range branches {
		ranked := b.analysis.Ranked
		n := float64(len(ranked))
		var sum float64
		for _, r := range ranked {
			if r.Rank < 1 || r.Rank > n {
				p.errorf("%s: year %d has rank %v outside [1, %v]", b.name, r.Period, r.Rank, n)
			}
			sum += r.Rank
		}
		if want := n * (n + 1) / 2; math.Abs(sum-want) > tolerance*want {
			p.errorf("%s: ranks sum to %v, want %v", b.name, sum, want)
		}
	}
	return p
}

// validateReturnIntervals checks RI = (span+1)/rank and that a larger loss
// never has a shorter return interval.
func validateReturnIntervals(branches []branch) *phase {
	p := &phase{name: "Return intervals monotone in loss"}
	for _, b := range branches {
		ranked := b.analysis.Ranked
		span := float64(b.analysis.Summary.RecordSpan)
		for i, r := range ranked {
			if want := (span + 1) / r.Rank; math.Abs(r.ReturnInterval-want) > tolerance*want {
				p.errorf("%s: year %d RI %v, want %v", b.name, r.Period, r.ReturnInterval, want)
			}
			for _, o := range ranked[i+1:] {
				if r.Value > o.Value && r.ReturnInterval < o.ReturnInterval {
					p.errorf("%s: year %d (%v) has shorter RI than year %d (%v)", b.name, r.Period, r.Value, o.Period, o.Value)
				}
			}
		}
	}
	return p
}

// validateInversion checks Evaluate(ImpliedReturnInterval(t)) == t for
// every threshold the curve can reach.
func validateInversion(branches []branch, thresholds []float64) *phase {
	p := &phase{name: "Fit inversion round-trip"}
	for _, b := range branches {
		fit := b.analysis.Fit
		for _, t := range thresholds {
			ri, err := fit.ImpliedReturnInterval(t)
			if err != nil {
				continue
			}
			if got := fit.Evaluate(ri); math.Abs(got-t) > 1e-6*math.Max(1, t) {
				p.errorf("%s: threshold %v round-trips to %v", b.name, t, got)
			}
		}
		for i, x := range fit.Domain {
			if got := fit.Evaluate(x); math.Abs(got-fit.Curve[i]) > tolerance*math.Max(1, math.Abs(got)) {
				p.errorf("%s: curve at RI %v is %v, Evaluate gives %v", b.name, x, fit.Curve[i], got)
			}
		}
	}
	return p
}

func validateBand(branches []branch) *phase {
	p := &phase{name: "Confidence band encloses curve"}
	for _, b := range branches {
		band, curve := b.analysis.Band, b.analysis.Fit.Curve
		for i := range curve {
			if band.Lower[i] > curve[i] || band.Upper[i] < curve[i] {
				p.errorf("%s: band [%v, %v] excludes curve %v at RI %v",
					b.name, band.Lower[i], band.Upper[i], curve[i], b.analysis.Fit.Domain[i])
			}
		}
	}
	return p
}

// validatePoissonMass sums P(k; λ) over enough k to hold all but a
// negligible tail, for every threshold rate in every branch.
func validatePoissonMass(branches []branch) *phase {
	p := &phase{name: "Poisson mass sums to one"}
	for _, b := range branches {
		for _, th := range b.analysis.Exceedance.Thresholds {
			upper := int(th.Lambda + 12*math.Sqrt(th.Lambda) + 20)
			var mass float64
			for _, k := range hazard.KRange(0, upper) {
				pk, err := hazard.PoissonPMF(k, th.Lambda)
				if err != nil {
					p.errorf("%s: P(%d; %v): %v", b.name, k, th.Lambda, err)
					break
				}
				mass += pk
			}
			if math.Abs(mass-1) > 1e-9 {
				p.errorf("%s: threshold %v (λ=%v) mass %v", b.name, th.Threshold, th.Lambda, mass)
			}
		}
	}
	return p
}

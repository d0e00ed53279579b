// Command genmock writes a synthetic SHELDUS claims export whose annual
// totals follow a known log-linear loss curve, so the fitted coefficients
// of a run against it can be checked exactly. Records are passed through
// the real domain package before being written.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/sheldus_claims.csv \
//	  -json-out data/mock/sheldus_claims.json \
//	  -start 1960 -years 60 -a 40 -b 5
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
)

var header = []string{" Hazard", " Year", " EventName", " CountyName", " County_FIPS", " PropertyDmg(ADJ)", " PropertyDmgPerCapita"}

var hazards = []string{
	"Flooding", "Hail", "Wind", "Severe Storm/Thunder Storm", "Tornado", "Lightning",
	"Hurricane/Tropical Storm", "Winter Weather", "Drought", "Heat", "Wildfire",
}

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type county struct {
	name       string
	fips       string
	population float64
}

var counties = []county{
	{"Charleston", "45019", 408235},
	{"Greenville", "45045", 525534},
	{"Horry", "45051", 351029},
	{"Richland", "45079", 416147},
	{"Beaufort", "45013", 187117},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the CSV export")
	jsonOut := flag.String("json-out", "", "optional output path for the records as a JSON array")
	start := flag.Int("start", 1960, "first year")
	years := flag.Int("years", 60, "number of years")
	a := flag.Float64("a", 40, "curve slope, USD millions per unit ln(RI)")
	b := flag.Float64("b", 5, "curve intercept, USD millions")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *years < 2 || *a <= 0 || *b <= 0 {
		return fmt.Errorf("need -years >= 2 and positive -a and -b")
	}

	records := generate(*start, *years, *a, *b, rand.New(rand.NewPCG(*seed, *seed)))

	claims := make([]domain.Claim, 0, len(records))
	for _, rec := range records {
		c, err := domain.ParseClaim(rec)
		if err != nil {
			return fmt.Errorf("generated record does not parse: %w", err)
		}
		claims = append(claims, c)
	}

	if err := writeCSV(*out, records); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	log.Printf("wrote %d claims: %s", len(records), *out)

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, records); err != nil {
			return fmt.Errorf("writing json: %w", err)
		}
		log.Printf("wrote json fixture: %s", *jsonOut)
	}

	printStats(claims, *a, *b)
	return nil
}

// generate assigns every year a distinct rank through a random permutation
// and sets its total loss to a*ln((n+1)/rank) + b, split across one to four
// claims.
func generate(start, years int, a, b float64, rng *rand.Rand) []domain.RawClaimRecord {
	ranks := rng.Perm(years)
	var records []domain.RawClaimRecord //nolint:prealloc // claims per year are random
	for i := range years {
		year := start + i
		rank := float64(ranks[i] + 1)
		total := (a*math.Log(float64(years+1)/rank) + b) * 1e6

		parts := 1 + rng.IntN(4)
		weights := make([]float64, parts)
		var sum float64
		for j := range weights {
			weights[j] = 0.5 + rng.Float64()
			sum += weights[j]
		}

		var written float64
		for j, w := range weights {
			dmg := math.Round(total*w/sum*100) / 100
			if j == parts-1 {
				dmg = math.Round((total-written)*100) / 100
			}
			written += dmg

			hz := hazards[rng.IntN(len(hazards))]
			c := counties[rng.IntN(len(counties))]
			records = append(records, domain.RawClaimRecord{
				Hazard:               hz,
				Year:                 strconv.Itoa(year),
				EventName:            fmt.Sprintf("%s %d %s", hz, year, months[rng.IntN(len(months))]),
				CountyName:           c.name,
				CountyFIPS:           "'" + c.fips,
				PropertyDmgAdj:       strconv.FormatFloat(dmg, 'f', 2, 64),
				PropertyDmgPerCapita: strconv.FormatFloat(dmg/c.population, 'f', 4, 64),
			})
		}
	}
	return records
}

func writeCSV(path string, records []domain.RawClaimRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.Hazard, r.Year, r.EventName, r.CountyName, r.CountyFIPS, r.PropertyDmgAdj, r.PropertyDmgPerCapita}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(claims []domain.Claim, a, b float64) {
	series := domain.AnnualSeries(claims, domain.MetricTotal, nil)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Claims: %d\n", len(claims))
	fmt.Printf("Years: %d (%d-%d)\n", len(series), series[0].Period, series[len(series)-1].Period)
	fmt.Printf("Expected fit: a=%g b=%g (natural log)\n", a, b)

	fmt.Println("\nCategory shares:")
	for _, s := range domain.CategoryShares(claims) {
		fmt.Printf("  %-24s claims=%-4d $%.1fM (%.1f%%)\n", s.Category, s.Claims, s.MillionsDollars, s.PercentOfTotal)
	}

	fmt.Println("\nWorst events:")
	for _, e := range domain.WorstEvents(claims, 5) {
		fmt.Printf("  %-40s $%.1fM\n", e.EventName, e.MillionsDollars)
	}
}

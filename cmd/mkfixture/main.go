// mkfixture writes a labeled synthetic claims dataset as Parquet tables.
// Usage: go run ./cmd/mkfixture --out testdata/claims --claims 2000 --fraud-rate 0.1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/loader"
	"github.com/gyeh/claimrisk/internal/synth"
)

func main() {
	out := flag.String("out", "testdata/claims", "output directory")
	patients := flag.Int("patients", 200, "number of patients")
	providers := flag.Int("providers", 40, "number of providers")
	claims := flag.Int("claims", 2000, "number of claims")
	fraudRate := flag.Float64("fraud-rate", 0.1, "share of claims generated from a fraud pattern")
	seed := flag.Uint64("seed", 42, "random seed")
	start := flag.String("start", "2023-01-01", "first service date (YYYY-MM-DD)")
	months := flag.Int("months", 12, "length of the service window in months")
	checkOnly := flag.Bool("check", false, "only print stats of the dataset in --out")
	flag.Parse()

	if *checkOnly {
		ds, err := loader.ReadParquetDir(context.Background(), *out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read dataset: %v\n", err)
			os.Exit(1)
		}
		printStats(ds)
		return
	}

	from, err := time.Parse("2006-01-02", *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse --start: %v\n", err)
		os.Exit(1)
	}
	ds := synth.Generate(synth.Options{
		Patients:  *patients,
		Providers: *providers,
		Claims:    *claims,
		FraudRate: *fraudRate,
		Seed:      *seed,
		Start:     from,
		End:       from.AddDate(0, *months, 0),
	})
	if err := loader.WriteParquetDir(*out, ds); err != nil {
		fmt.Fprintf(os.Stderr, "write dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
	printStats(ds)
}

func printStats(ds *loader.Dataset) {
	st, sum := loader.FromDataset(ds, zerolog.Nop())
	fs := st.FraudStatistics()
	fmt.Printf("Patients: %d, Providers: %d, Policies: %d, Claims: %d (rejected %d)\n",
		len(ds.Patients), len(ds.Providers), len(ds.Policies), len(ds.Claims), sum.Rejected())
	fmt.Printf("Fraudulent: %d, Normal: %d, Rate: %.3f\n", fs.FraudulentClaims, fs.NormalClaims, fs.FraudRate)
	types := make([]string, 0, len(fs.FraudByType))
	for t := range fs.FraudByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, fs.FraudByType[t])
	}
}

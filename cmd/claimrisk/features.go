package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/features"
	"github.com/gyeh/claimrisk/internal/logging"
)

var featureOpts struct {
	claims []string
	limit  int
	out    string
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Extract feature rows and write them to a Parquet file",
	RunE:  runFeatures,
}

func init() {
	f := featuresCmd.Flags()
	f.StringSliceVar(&featureOpts.claims, "claims", nil, "Claim ids to extract (default: all claims)")
	f.IntVar(&featureOpts.limit, "limit", 0, "Extract at most this many claims")
	f.StringVar(&featureOpts.out, "out", "", "Output Parquet path (required)")
	f.IntVar(&cfg.Scoring.Workers, "workers", cfg.Scoring.Workers, "Parallel feature workers (0 = GOMAXPROCS)")
	_ = featuresCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	s := openSession(ctx, log, false)
	defer s.Close()

	m, err := s.eng.ExtractFeatures(ctx, engine.Request{ClaimIDs: featureOpts.claims, Limit: featureOpts.limit})
	if err != nil {
		s.Close()
		fail(log, exitcode.LoadError, err, "feature extraction failed")
	}
	if err := features.WriteParquet(featureOpts.out, m); err != nil {
		s.Close()
		fail(log, exitcode.ValidationError, err, "failed to write features")
	}

	fmt.Printf("Wrote %d rows x %d features (schema %s) to %s\n",
		m.Len(), m.Schema.Len(), m.Schema.Version(), featureOpts.out)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/logging"
	"github.com/gyeh/claimrisk/internal/pipeline"
	"github.com/gyeh/claimrisk/internal/store"
)

var scoreOpts struct {
	claims      []string
	limit       int
	explain     bool
	persist     bool
	out         string
	metricsFile string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score claims with the trained model",
	RunE:  runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringSliceVar(&scoreOpts.claims, "claims", nil, "Claim ids to score (default: all claims)")
	f.IntVar(&scoreOpts.limit, "limit", 0, "Score at most this many claims")
	f.BoolVar(&scoreOpts.explain, "explain", false, "Attach red flags, summary and recommendation to each assessment")
	f.BoolVar(&scoreOpts.persist, "persist", false, "Store assessments in claimrisk.risk_assessments (requires --dsn)")
	f.StringVar(&scoreOpts.out, "out", "", "Write the JSON report here instead of stdout")
	f.StringVar(&scoreOpts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	f.IntVar(&cfg.Scoring.BatchSize, "batch-size", cfg.Scoring.BatchSize, "Claims per scoring batch")
	f.DurationVar(&cfg.Scoring.RunTimeout, "timeout", cfg.Scoring.RunTimeout, "Bound on the whole run (0 disables)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if scoreOpts.persist {
		if err := cfg.ValidateWithDSN(); err != nil {
			fail(log, exitcode.UsageError, err, "--persist needs a database")
		}
	}

	s := openSession(ctx, log, true)
	defer s.Close()

	req := engine.Request{ClaimIDs: scoreOpts.claims, Limit: scoreOpts.limit}
	if req.ClaimIDs != nil {
		st := s.eng.Snapshot().Store
		known := 0
		for _, id := range req.ClaimIDs {
			if st.HasClaim(id) {
				known++
				continue
			}
			log.Warn().Str("claim_id", id).Msg("unknown claim id skipped")
		}
		if known == 0 {
			s.Close()
			fail(log, exitcode.NotFound, store.ErrNotFound, "none of the requested claims exist")
		}
	}

	opts := pipeline.Options{
		Request: req,
		Explain: scoreOpts.explain,
		Timeout: cfg.Scoring.RunTimeout,
	}
	if scoreOpts.persist {
		opts.Sink = &pipeline.PGSink{Pool: s.pool, Log: log}
	}

	rep, err := pipeline.Run(ctx, s.eng, log, opts)
	code := exitcode.Success
	if err != nil {
		var pe *pipeline.PipelineError
		switch {
		case errors.As(err, &pe) && pe.Phase == "persist" && rep != nil:
			log.Error().Err(pe.Err).Msg("scores computed but not persisted")
			code = exitcode.PartialSuccess
		case errors.Is(err, artifact.ErrModelUnavailable):
			code = exitcode.ModelUnavailable
		case errors.Is(err, engine.ErrNoData):
			code = exitcode.LoadError
		default:
			code = exitcode.ValidationError
		}
		if code != exitcode.PartialSuccess {
			log.Error().Err(err).Msg("scoring failed")
			s.Close()
			os.Exit(code)
		}
	}

	if err := writeReport(rep); err != nil {
		log.Error().Err(err).Msg("failed to write report")
		code = exitcode.PartialSuccess
	}
	if scoreOpts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(scoreOpts.metricsFile, s.eng.Metrics().Registry); err != nil {
			log.Warn().Err(err).Str("path", scoreOpts.metricsFile).Msg("failed to write metrics")
		}
	}

	sum := rep.Summary
	fmt.Fprintf(os.Stderr, "Scoring complete: %d claims, %d flagged (%.1f%%), %d stored (%.1fs)\n",
		sum.ClaimsScored, sum.FraudPredicted, sum.FlaggedRate*100, sum.AssessmentsStored, sum.DurationTotal.Seconds())
	if code != exitcode.Success {
		s.Close()
		os.Exit(code)
	}
	return nil
}

func writeReport(rep *pipeline.Report) error {
	out := os.Stdout
	if scoreOpts.out != "" {
		f, err := os.Create(scoreOpts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/logging"
	"github.com/gyeh/claimrisk/internal/ml"
)

var statusTop int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model readiness, performance and top features",
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dataset fraud statistics and model summary",
	RunE:  runStats,
}

func init() {
	statusCmd.Flags().IntVar(&statusTop, "top", 10, "Number of top features to list")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
}

type statusOutput struct {
	engine.Status
	Performance *ml.Report            `json:"performance,omitempty"`
	TopFeatures []artifact.Importance `json:"top_features,omitempty"`
}

// runStatus needs only the artifact store, not claim data.
func runStatus(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	var store artifact.Store = artifact.FileStore{Dir: cfg.ModelDir}
	if cfg.DSN != "" {
		pool, err := db.NewPool(ctx, cfg.DSN)
		if err != nil {
			fail(log, exitcode.DBConnError, err, "database connection failed")
		}
		defer pool.Close()
		store = artifact.PGStore{Pool: pool}
	}

	eng, err := engine.New(engineOptions(store), log)
	if err != nil {
		fail(log, exitcode.UsageError, err, "engine setup failed")
	}
	loadModel(ctx, log, eng, false)

	out := statusOutput{Status: eng.ModelStatus()}
	if perf, err := eng.ModelPerformance(); err == nil {
		out.Performance = &perf
		out.TopFeatures, _ = eng.FeatureImportance(statusTop)
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if !out.Ready() {
		os.Exit(exitcode.ModelUnavailable)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	s := openSession(ctx, log, false)
	defer s.Close()

	stats, err := s.eng.Statistics()
	if err != nil {
		s.Close()
		fail(log, exitcode.LoadError, err, "statistics unavailable")
	}
	return printJSON(stats)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

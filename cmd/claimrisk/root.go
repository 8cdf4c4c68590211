package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/config"
	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/loader"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/store"
)

var (
	cfg        = config.Default()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:               "claimrisk",
	Short:             "Health-insurance claim fraud scoring",
	Long:              "Loads claims, patients, providers and policies from Parquet or Postgres, trains a fraud classifier and scores claims with risk levels and explanations.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfigFile,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file with scoring and training settings")
	pf.StringVar(&cfg.DataDir, "data-dir", "", "Directory of patients/providers/policies/claims Parquet files")
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("CLAIMRISK_DB_URL"), "Postgres connection string (or set CLAIMRISK_DB_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&cfg.ModelDir, "model-dir", cfg.ModelDir, "Directory for model artifacts when no database is configured")
	pf.StringVar(&cfg.ModelName, "model-name", cfg.ModelName, "Name of the model artifact to train or load")
}

// loadConfigFile merges the --config file into cfg, then re-applies flags
// given on the command line so they win over the file.
func loadConfigFile(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return nil
	}
	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if strings.HasSuffix(f.Value.Type(), "Slice") {
			return
		}
		changed[f.Name] = f.Value.String()
	})
	if err := cfg.LoadFromFile(configPath); err != nil {
		return err
	}
	for name, v := range changed {
		if err := cmd.Flags().Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// fail logs err and exits with code.
func fail(log zerolog.Logger, code int, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	os.Exit(code)
}

func engineOptions(artifacts artifact.Store) engine.Options {
	opts := engine.DefaultOptions()
	opts.Graph.BetweennessCeiling = cfg.Scoring.BetweennessCeiling
	opts.Features.Workers = cfg.Scoring.Workers
	opts.TopFeatures = cfg.Scoring.TopFeatures
	opts.BatchSize = cfg.Scoring.BatchSize
	opts.ModelName = cfg.ModelName
	opts.Artifacts = artifacts
	return opts
}

// session bundles what a data-backed command needs.
type session struct {
	eng  *engine.Engine
	pool *pgxpool.Pool // nil for Parquet sources
	load *model.LoadSummary
}

func (s *session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openSession validates cfg, loads the entity store from the configured
// source and builds an engine over it. With requireModel set, a missing
// artifact exits with ModelUnavailable; otherwise it is only logged.
func openSession(ctx context.Context, log zerolog.Logger, requireModel bool) *session {
	if err := cfg.Validate(); err != nil {
		fail(log, exitcode.UsageError, err, "config validation failed")
	}

	s := &session{}
	var (
		st  *store.Store
		err error
	)
	if cfg.DSN != "" {
		s.pool, err = db.NewPool(ctx, cfg.DSN)
		if err != nil {
			fail(log, exitcode.DBConnError, err, "database connection failed")
		}
		st, s.load, err = loader.FromPostgres(ctx, s.pool, log)
	} else {
		st, s.load, err = loader.FromParquetDir(ctx, cfg.DataDir, log)
	}
	if err != nil {
		s.Close()
		fail(log, exitcode.LoadError, err, "failed to load claim data")
	}

	s.eng, err = engine.New(engineOptions(artifactStore(s.pool)), log)
	if err != nil {
		s.Close()
		fail(log, exitcode.UsageError, err, "engine setup failed")
	}
	s.eng.Rebuild(st, s.load)
	loadModel(ctx, log, s.eng, requireModel)
	return s
}

func artifactStore(pool *pgxpool.Pool) artifact.Store {
	if pool != nil {
		return artifact.PGStore{Pool: pool}
	}
	return artifact.FileStore{Dir: cfg.ModelDir}
}

func loadModel(ctx context.Context, log zerolog.Logger, eng *engine.Engine, required bool) {
	err := eng.LoadArtifact(ctx)
	switch {
	case err == nil:
	case errors.Is(err, artifact.ErrModelUnavailable) && !required:
		log.Warn().Str("model", cfg.ModelName).Msg("no trained model found")
	case errors.Is(err, artifact.ErrModelUnavailable):
		fail(log, exitcode.ModelUnavailable, err, "no trained model; run claimrisk train first")
	default:
		fail(log, exitcode.ModelUnavailable, err, "failed to load model")
	}
}

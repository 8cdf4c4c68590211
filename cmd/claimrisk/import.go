package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/loader"
	"github.com/gyeh/claimrisk/internal/logging"
)

var importFrom string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load a Parquet dataset directory into Postgres",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFrom, "from", "", "Directory of Parquet entity tables (required)")
	_ = importCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		fail(log, exitcode.UsageError, err, "config validation failed")
	}

	ds, err := loader.ReadParquetDir(ctx, importFrom)
	if err != nil {
		fail(log, exitcode.LoadError, err, "failed to read dataset")
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		fail(log, exitcode.DBConnError, err, "database connection failed")
	}
	defer pool.Close()

	sum, err := loader.ImportDataset(ctx, pool, log, ds)
	if err != nil {
		pool.Close()
		fail(log, exitcode.LoadError, err, "import failed")
	}

	for _, t := range sum.Tables {
		fmt.Printf("%-10s %d rows imported\n", t.Table, t.RowsLoaded)
	}
	fmt.Printf("Import complete (%.1fs)\n", sum.Duration.Seconds())
	return nil
}

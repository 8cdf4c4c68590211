package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		fail(log, exitcode.UsageError, err, "config validation failed")
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		fail(log, exitcode.DBConnError, err, "database connection failed")
	}
	defer pool.Close()

	n, err := db.ApplyMigrations(ctx, pool, log)
	if err != nil {
		pool.Close()
		fail(log, exitcode.ValidationError, err, "migration failed")
	}

	fmt.Printf("Migrations complete: %d applied\n", n)
	return nil
}

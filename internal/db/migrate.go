package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/claimrisk/internal/sql"
)

const migrationsTable = `CREATE SCHEMA IF NOT EXISTS claimrisk;
CREATE TABLE IF NOT EXISTS claimrisk.schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ApplyMigrations runs the embedded SQL migrations not yet recorded in
// claimrisk.schema_migrations, in filename order, each in its own
// transaction. It returns how many were applied.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (int, error) {
	names, err := migrationNames()
	if err != nil {
		return 0, err
	}
	if _, err := pool.Exec(ctx, migrationsTable); err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := pool.Query(ctx, "SELECT name FROM claimrisk.schema_migrations")
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	done, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(done))
	for _, n := range done {
		applied[n] = true
	}

	count := 0
	for _, name := range names {
		if applied[name] {
			log.Debug().Str("migration", name).Msg("already applied")
			continue
		}
		data, err := fs.ReadFile(embedsql.Migrations, "migrations/"+name)
		if err != nil {
			return count, fmt.Errorf("read migration %s: %w", name, err)
		}

		log.Info().Str("migration", name).Msg("applying migration")
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO claimrisk.schema_migrations (name) VALUES ($1)", name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("execute migration %s: %w", name, err)
		}
		count++
	}

	log.Info().Int("applied", count).Int("total", len(names)).Msg("migrations up to date")
	return count, nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(embedsql.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

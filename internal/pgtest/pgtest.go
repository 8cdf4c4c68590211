// Package pgtest starts an embedded Postgres for integration tests.
//
// Integration tests are opt-in: they run only when CLAIMRISK_PG_TESTS=1,
// because the first run downloads a Postgres binary.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/logging"
)

const (
	testDB       = "claimrisktest"
	testUser     = "postgres"
	testPassword = "postgres"
)

// Enabled reports whether Postgres integration tests should run.
func Enabled() bool {
	return os.Getenv("CLAIMRISK_PG_TESTS") == "1"
}

// Server is a running embedded Postgres.
type Server struct {
	DSN string
	pg  *embeddedpostgres.EmbeddedPostgres
}

// Start launches an embedded Postgres on port. Each test package should use
// its own port so packages can run in parallel.
func Start(port uint32) (*Server, error) {
	dir, err := os.MkdirTemp("", "claimrisk-pg-*")
	if err != nil {
		return nil, err
	}
	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			RuntimePath(dir).
			StartTimeout(30 * time.Second),
	)
	if err := pg.Start(); err != nil {
		return nil, fmt.Errorf("start embedded postgres: %w", err)
	}
	return &Server{
		DSN: fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable", testUser, testPassword, port, testDB),
		pg:  pg,
	}, nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	return s.pg.Stop()
}

// Run is a TestMain helper. When integration tests are enabled it starts a
// server into *srv before running m and stops it afterwards; otherwise it
// just runs m and tests guarded by Require skip.
func Run(m *testing.M, port uint32, srv **Server) int {
	if !Enabled() {
		return m.Run()
	}
	s, err := Start(port)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	*srv = s
	code := m.Run()
	if err := s.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	return code
}

// Require skips t when no server is running.
func Require(t *testing.T, s *Server) {
	t.Helper()
	if s == nil {
		t.Skip("set CLAIMRISK_PG_TESTS=1 to run Postgres integration tests")
	}
}

// Fresh drops the claimrisk schema, reapplies migrations and returns a pool
// closed at test cleanup.
func (s *Server) Fresh(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, s.DSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS claimrisk CASCADE"); err != nil {
		pool.Close()
		t.Fatalf("drop schema: %v", err)
	}
	if _, err := db.ApplyMigrations(ctx, pool, logging.Setup("text", "warn")); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

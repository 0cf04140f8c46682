// Package pgtest opens the PostgreSQL database used by DB-backed tests.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/carwave/carpool/migrations"
)

// DSNEnv names the variable holding the test database DSN
const DSNEnv = "CARPOOL_TEST_DSN"

// Open connects to the test database, applies the schema and empties every
// table. The test is skipped when no DSN is configured.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skip(DSNEnv + " not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE reviews, passenger_requests, rides, cars, users"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

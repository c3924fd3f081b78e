// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/store"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "../../")
	return root
}

// Logger returns a logger that writes through t.Log.
func Logger(t testing.TB) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// PostgresStore resets the database at TEST_DB_URL with goose and returns a
// migrated store. The test is skipped when TEST_DB_URL is not set.
func PostgresStore(t testing.TB) *store.Postgres {
	t.Helper()

	if err := godotenv.Load(filepath.Join(ProjectRoot(), ".env")); err != nil {
		t.Logf("failed to load .env file: %+v", err)
	}

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}
	defer dbPool.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("goose.SetDialect() error = %+v", err)
	}

	migDir := filepath.Join(ProjectRoot(), "sql", "schema")
	dbForGoose := stdlib.OpenDBFromPool(dbPool)
	if err := goose.Reset(dbForGoose, migDir); err != nil {
		dbForGoose.Close()
		t.Fatalf("goose.Reset() error = %+v", err)
	}
	dbForGoose.Close()

	s, err := store.NewPostgres(ctx, testURL)
	if err != nil {
		t.Fatalf("store.NewPostgres() error = %+v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		t.Fatalf("Migrate() error = %+v", err)
	}
	t.Cleanup(s.Close)

	return s
}

// SQLiteStore returns a fresh in-memory sqlite store. The test is skipped
// when the sqlite driver is unusable, e.g. in a cgo-less build.
func SQLiteStore(t testing.TB) *store.SQLite {
	t.Helper()

	s, err := store.NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

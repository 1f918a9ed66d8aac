//go:build integration

package mssql

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage/relational"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestSinkIntegration creates a table twice (the second time guarded by
// OBJECT_ID), appends rows in several statements, and counts them.
func TestSinkIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := schema.Table{Name: "etl_sink_integration", Columns: []schema.Column{
		{Name: "name", Type: schema.Type{Kind: schema.VarChar, Length: 100}},
		{Name: "n", Type: schema.Type{Kind: schema.BigInt}},
	}}
	rows := make([][]any, 2500)
	for i := range rows {
		rows[i] = []any{"row", int64(i)}
	}

	for i, mode := range []relational.Mode{relational.ModeRecreate, relational.ModeCreateIfAbsent} {
		s, err := relational.Open(ctx, Dialect{}, dsn, relational.Options{Mode: mode, BatchSize: 5000}, zerolog.Nop())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := s.Bootstrap(ctx, table); err != nil {
			t.Fatalf("Bootstrap(%d) error = %v", i, err)
		}
		n, err := s.Write(ctx, &batch.Batch{Columns: []string{"name", "n"}, Rows: rows})
		if err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
		if n != int64(len(rows)) {
			t.Fatalf("Write(%d) = %d, want %d", i, n, len(rows))
		}
		_ = s.Close()
	}

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM [etl_sink_integration]").Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 2*len(rows) {
		t.Fatalf("count = %d, want %d", count, 2*len(rows))
	}
	_, _ = db.ExecContext(ctx, Dialect{}.DropTable("etl_sink_integration"))
}

package db

import (
	"database/sql"
	"testing"
)

// NewTestDB returns an in-memory state database that is closed when tb ends.
func NewTestDB(tb testing.TB) *sql.DB {
	tb.Helper()

	database, err := Open(":memory:")
	if err != nil {
		tb.Fatalf("opening in-memory state database: %v", err)
	}
	// Each connection to :memory: is its own database.
	database.SetMaxOpenConns(1)
	tb.Cleanup(func() {
		if err := database.Close(); err != nil {
			tb.Errorf("closing in-memory state database: %v", err)
		}
	})

	if err := EnsureSchema(database); err != nil {
		tb.Fatalf("applying state schema: %v", err)
	}
	return database
}

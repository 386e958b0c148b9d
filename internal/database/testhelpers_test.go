package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestDB starts a throwaway postgres, migrates it and returns a connected DB.
// The container is terminated when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("holdings"),
		tcpostgres.WithUsername("holdings"),
		tcpostgres.WithPassword("holdings"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := New(connStr)
	require.NoError(t, err, "connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.RunMigrations(), "migrate test database")
	return db
}

// resetHoldings empties the holdings table between subtests.
func resetHoldings(t *testing.T, db *DB) {
	t.Helper()
	_, err := db.conn.Exec("TRUNCATE TABLE holdings RESTART IDENTITY")
	require.NoError(t, err)
}

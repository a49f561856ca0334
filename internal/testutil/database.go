// Package testutil starts throwaway Postgres containers for integration
// suites.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pesio-ai/be-sow-approvals/internal/database"
)

// SetupTestDatabase starts Postgres, connects a pool and applies the schema.
func SetupTestDatabase(t *testing.T, ctx context.Context) (testcontainers.Container, *database.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("sow_approvals_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, database.Config{DSN: connStr, MaxConns: 20})
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx))

	return pgContainer, db
}

// CleanupTestDatabase closes the pool and stops the container.
func CleanupTestDatabase(t *testing.T, ctx context.Context, container testcontainers.Container, db *database.DB) {
	t.Helper()
	if db != nil {
		db.Close()
	}
	if container != nil {
		require.NoError(t, container.Terminate(ctx))
	}
}

// TruncateTables empties every table, the seeded stages included.
func TruncateTables(t *testing.T, ctx context.Context, db *database.DB) {
	t.Helper()
	_, err := db.Exec(ctx, `
		TRUNCATE TABLE sow_workflow_audit_log, sow_comments, sow_approvals,
		               approval_rules, approval_stages, sows
		CASCADE
	`)
	require.NoError(t, err)
}

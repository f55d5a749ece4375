//go:build integration

package library_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"pollex.nl/lazyload/internal/database"
)

// Run with: go test -tags=integration ./internal/library/...
// Docker must be available.

func postgresDSN(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lazyload"),
		postgres.WithUsername("lazyload"),
		postgres.WithPassword("lazyload"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return dsn
}

func mysqlDSN(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("lazyload"),
		mysql.WithUsername("lazyload"),
		mysql.WithPassword("lazyload"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	return dsn
}

func TestStrategiesAgreeIntegration(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		dsn := postgresDSN(t)

		for _, driver := range []string{"postgres", "pgx"} {
			t.Run(driver, func(t *testing.T) {
				store, _, _ := setupStore(t, database.Config{Driver: driver, DSN: dsn})
				ctx := context.Background()

				_, err := store.EnsureDeleted(ctx)
				require.NoError(t, err)
				created, err := store.EnsureCreated(ctx)
				require.NoError(t, err)
				require.True(t, created)
				_, err = store.Seed(ctx)
				require.NoError(t, err)

				assertStrategiesAgree(t, store)
			})
		}
	})

	t.Run("mysql", func(t *testing.T) {
		store, _, _ := seededStore(t, database.Config{Driver: "mysql", DSN: mysqlDSN(t)})
		assertStrategiesAgree(t, store)
	})
}

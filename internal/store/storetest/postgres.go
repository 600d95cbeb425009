//go:build integration

package storetest

import (
	"context"
	"os"
	"testing"
	"time"

	"parcels/internal/store"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// OpenPostgres returns a migrated store on a real PostgreSQL server. It uses
// TEST_DATABASE_URL when set and otherwise starts a throwaway container.
func OpenPostgres(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		ctr, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("parcels"),
			postgres.WithUsername("app"),
			postgres.WithPassword("secret"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		testcontainers.CleanupContainer(t, ctr)
		require.NoError(t, err)

		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	gdb, err := store.Open(ctx, store.DBConfig{DSN: dsn, MaxOpenConns: 16, MaxIdleConns: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(gdb) })

	st := store.New(gdb)
	require.NoError(t, st.AutoMigrate(ctx))
	return st
}

//go:build integration

package pgtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once     sync.Once
	dsn      string
	startErr error
)

// one container per test binary; the reaper removes it when the binary exits
func start(ctx context.Context) {
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("retail_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		startErr = err
		return
	}
	dsn, startErr = container.ConnectionString(ctx, "sslmode=disable")
}

// Pool returns a pool on a migrated, empty database. Tests sharing a
// binary share the container, so they must not run in parallel.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	once.Do(func() { start(ctx) })
	require.NoError(t, startErr, "start postgres container")

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users, categories, parameters RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

// User inserts an active account of the given type and returns its id.
func User(t *testing.T, db postgres.DB, email, userType string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO users(email, password_hash, type, is_active) VALUES ($1, 'x', $2, TRUE)
		RETURNING id`, email, userType).Scan(&id)
	require.NoError(t, err)
	return id
}

// Count runs a count(*) style query and returns the single integer.
func Count(t *testing.T, db postgres.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

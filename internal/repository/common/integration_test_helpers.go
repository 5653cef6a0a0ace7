//go:build integration

package common

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Taichi-iskw/lesson-media/internal/config"
)

// SetupTestDB creates a PostgreSQL testcontainer and runs the embedded migrations
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, config.MigrateDatabase(databaseURL, "up"))

	pool, err := pgxpool.New(ctx, databaseURL)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	return pool
}

// SeedLesson inserts a bare lesson row so media/transcript rows can reference it
func SeedLesson(t *testing.T, pool *pgxpool.Pool, id, title string, legacyContent *string) {
	_, err := pool.Exec(context.Background(),
		"INSERT INTO lessons (id, title, content) VALUES ($1, $2, $3)", id, title, legacyContent)
	require.NoError(t, err)
}

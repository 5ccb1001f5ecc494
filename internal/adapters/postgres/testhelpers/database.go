// Package testhelpers starts a throwaway PostgreSQL container for repository tests.
package testhelpers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/postgres"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image    = "postgres:16-alpine"
	user     = "checkout"
	password = "checkout"
	dbName   = "checkout_test"
)

type TestDatabase struct {
	Container testcontainers.Container
	DB        *postgres.DB
	Config    *config.DatabaseConfig
}

// SetupTestDatabase boots postgres, applies the embedded schema and returns
// a connected pool. Skipped under -short.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     user,
				"POSTGRES_PASSWORD": password,
				"POSTGRES_DB":       dbName,
			},
			// postgres logs readiness once for the init server and once for the real one.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	cfg := containerConfig(ctx, t, container)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := postgres.Connect(ctx, cfg, quiet)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	return &TestDatabase{Container: container, DB: db, Config: cfg}
}

func containerConfig(ctx context.Context, t *testing.T, c testcontainers.Container) *config.DatabaseConfig {
	t.Helper()

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            user,
		Password:        password,
		Name:            dbName,
		SSLMode:         "disable",
		MaxOpenConns:    16,
		MaxIdleConns:    2,
		ConnMaxLifetime: 10 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

func (td *TestDatabase) Cleanup(t *testing.T) {
	t.Helper()
	td.DB.Close()
	require.NoError(t, td.Container.Terminate(context.Background()))
}

// CleanTables empties both tables. TRUNCATE does not fire the row-level
// append-only trigger on the history table.
func (td *TestDatabase) CleanTables(t *testing.T) {
	t.Helper()
	_, err := td.DB.Pool.Exec(context.Background(),
		"TRUNCATE TABLE order_status_history, orders RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

package rates_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/rates"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) config.RatesConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container in -short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return config.RatesConfig{RedisAddr: host + ":" + port.Port()}
}

func TestRedisStore(t *testing.T) {
	cfg := setupRedis(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := rates.NewRedisClient(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := rates.NewRedisStore(client, logger)

	_, ok, err := store.Get(ctx, "ARS")
	require.NoError(t, err)
	assert.False(t, ok)

	fetched := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Set(ctx, domain.ExchangeRate{
		Currency:  "ARS",
		Rate:      decimal.RequireFromString("1012.5"),
		FetchedAt: fetched,
	}, time.Minute))

	got, ok, err := store.Get(ctx, "ARS")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Rate.Equal(decimal.RequireFromString("1012.5")))
	assert.True(t, got.FetchedAt.Equal(fetched))

	ttl, err := client.TTL(ctx, "checkout:rate:ARS").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Set(ctx, "checkout:rate:BRL", "not json", time.Minute).Err())
	_, ok, err = store.Get(ctx, "BRL")
	require.NoError(t, err)
	assert.False(t, ok)
}
